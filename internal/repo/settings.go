package repo

import (
	"context"

	"github.com/richardliu001/coin-wallet/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSettings reads the singleton row; gorm.ErrRecordNotFound when absent.
func (r *Repository) GetSettings(ctx context.Context, tx *gorm.DB) (*model.WalletSettings, error) {
	var s model.WalletSettings
	if err := tx.WithContext(ctx).Where("id = ?", model.SettingsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// EnsureSettingsForUpdate inserts defaults when the row is missing and
// returns it locked.
func (r *Repository) EnsureSettingsForUpdate(ctx context.Context, tx *gorm.DB, defaults model.WalletSettings) (*model.WalletSettings, error) {
	defaults.ID = model.SettingsID
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&defaults).Error; err != nil {
		return nil, err
	}
	var s model.WalletSettings
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", model.SettingsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings writes every column of the singleton row.
func (r *Repository) SaveSettings(ctx context.Context, tx *gorm.DB, s *model.WalletSettings) error {
	s.ID = model.SettingsID
	return tx.WithContext(ctx).Save(s).Error
}
