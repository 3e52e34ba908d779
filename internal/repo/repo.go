package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a wallet row changed under an optimistic update.
var ErrVersionConflict = errors.New("optimistic lock conflict")

// RepositoryInterface restricts Repo methods (方便单元测试 mock)
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetSettings(ctx context.Context, tx *gorm.DB) (*model.WalletSettings, error)
	EnsureSettingsForUpdate(ctx context.Context, tx *gorm.DB, defaults model.WalletSettings) (*model.WalletSettings, error)
	SaveSettings(ctx context.Context, tx *gorm.DB, s *model.WalletSettings) error

	FindWalletByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	GetOrCreateWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) (*model.Wallet, error)
	UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error
	HasReference(ctx context.Context, tx *gorm.DB, walletID uint64, referenceType string) (bool, error)
	IsOffset(ctx context.Context, tx *gorm.DB, creditID uint64) (bool, error)
	FindExpirableCredits(ctx context.Context, now time.Time, afterID uint64, limit int) ([]model.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uint64, offset, limit int) ([]model.WalletTransaction, int64, error)
	Statistics(ctx context.Context) (*model.Statistics, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheWallet(ctx context.Context, w *model.Wallet) error
	GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error)
	CacheSettings(ctx context.Context, s *model.WalletSettings) error
	GetCachedSettings(ctx context.Context) (*model.WalletSettings, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger

	walletTTL   time.Duration
	settingsTTL time.Duration
}

// NewRepository constructs repo. rdb and w may be nil when the cache or
// the event relay is not needed.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		db: db, rdb: rdb, writer: w, log: logger,
		walletTTL:   5 * time.Minute,
		settingsTTL: 30 * time.Second,
	}
}

// SetCacheTTL overrides cache lifetimes; zero keeps the current value.
func (r *Repository) SetCacheTTL(wallet, settings time.Duration) {
	if wallet > 0 {
		r.walletTTL = wallet
	}
	if settings > 0 {
		r.settingsTTL = settings
	}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// FindWalletByUser returns nil when the user has no wallet yet.
func (r *Repository) FindWalletByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreateWalletForUpdate inserts an empty wallet if none exists, then
// locks and returns the user's row. Concurrent first use converges on one row.
func (r *Repository) GetOrCreateWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	fresh := model.Wallet{UserID: userID}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&fresh).Error; err != nil {
		return nil, err
	}
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdate locks wallet row.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", walletID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWallet writes balance and lifetime counters with optimistic lock on
// w.Version. On success w.Version is advanced.
func (r *Repository) UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	now := time.Now()
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]interface{}{
			"balance":           w.Balance,
			"lifetime_earned":   w.LifetimeEarned,
			"lifetime_redeemed": w.LifetimeRedeemed,
			"version":           w.Version + 1,
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	w.Version++
	w.UpdatedAt = now
	return nil
}
