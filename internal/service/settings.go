package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	IsEnabled           *bool            `json:"is_enabled"`
	CoinToCurrencyRatio *decimal.Decimal `json:"coin_to_currency_ratio"`
	MaxRedeemableCoins  *int64           `json:"max_redeemable_coins"`
	CoinExpiryDays      *int             `json:"coin_expiry_days"`
	FirstPurchaseCoins  *int64           `json:"first_purchase_coins"`
}

func (p SettingsPatch) applyTo(s *model.WalletSettings) {
	if p.IsEnabled != nil {
		s.IsEnabled = *p.IsEnabled
	}
	if p.CoinToCurrencyRatio != nil {
		s.CoinToCurrencyRatio = *p.CoinToCurrencyRatio
	}
	if p.MaxRedeemableCoins != nil {
		s.MaxRedeemableCoins = *p.MaxRedeemableCoins
	}
	if p.CoinExpiryDays != nil {
		s.CoinExpiryDays = *p.CoinExpiryDays
	}
	if p.FirstPurchaseCoins != nil {
		s.FirstPurchaseCoins = *p.FirstPurchaseCoins
	}
}

func validateSettings(s *model.WalletSettings) error {
	switch {
	case !s.CoinToCurrencyRatio.IsPositive():
		return fmt.Errorf("%w: coin_to_currency_ratio must be > 0", ErrInvalidSettings)
	case s.MaxRedeemableCoins < 0:
		return fmt.Errorf("%w: max_redeemable_coins must be >= 0", ErrInvalidSettings)
	case s.CoinExpiryDays < 0:
		return fmt.Errorf("%w: coin_expiry_days must be >= 0", ErrInvalidSettings)
	case s.FirstPurchaseCoins < 0:
		return fmt.Errorf("%w: first_purchase_coins must be >= 0", ErrInvalidSettings)
	}
	return nil
}

// GetSettings returns the current settings.
func (s *WalletService) GetSettings(ctx context.Context) (*model.WalletSettings, error) {
	return s.loadSettings(ctx)
}

// UpdateSettings merges patch into the singleton row, creating it from the
// configured defaults when absent. The change applies to operations that
// start after it returns.
func (s *WalletService) UpdateSettings(ctx context.Context, patch SettingsPatch) (*model.WalletSettings, error) {
	var probe model.WalletSettings
	probe.CoinToCurrencyRatio = decimal.NewFromInt(1)
	patch.applyTo(&probe)
	if err := validateSettings(&probe); err != nil {
		return nil, err
	}

	var saved *model.WalletSettings
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.repo.EnsureSettingsForUpdate(ctx, tx, s.defaults)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		patch.applyTo(cur)
		if err := validateSettings(cur); err != nil {
			return err
		}
		cur.Version++
		if err := s.repo.SaveSettings(ctx, tx, cur); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		saved = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheSettings(ctx, saved); err != nil && !errors.Is(err, repo.ErrCacheDisabled) {
		s.log.Warnf("cache settings: %v", err)
	}
	s.log.Infow("wallet settings updated",
		"is_enabled", saved.IsEnabled,
		"ratio", saved.CoinToCurrencyRatio.String(),
		"max_redeemable", saved.MaxRedeemableCoins,
		"expiry_days", saved.CoinExpiryDays,
		"first_purchase_coins", saved.FirstPurchaseCoins)
	return saved, nil
}

// loadSettings reads settings once per operation, cache first.
func (s *WalletService) loadSettings(ctx context.Context) (*model.WalletSettings, error) {
	if cached, err := s.repo.GetCachedSettings(ctx); err == nil {
		return cached, nil
	}
	st, err := s.repo.GetSettings(ctx, s.repo.DB(ctx))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingsNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := s.repo.CacheSettings(ctx, st); err != nil && !errors.Is(err, repo.ErrCacheDisabled) {
		s.log.Warnf("cache settings: %v", err)
	}
	return st, nil
}
