package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettingsID is the primary key of the singleton settings row.
const SettingsID uint64 = 1

// WalletSettings is the global coin configuration.
type WalletSettings struct {
	ID                  uint64          `gorm:"primaryKey" json:"-"`
	IsEnabled           bool            `gorm:"not null;default:false" json:"is_enabled"`
	CoinToCurrencyRatio decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"coin_to_currency_ratio"`
	MaxRedeemableCoins  int64           `gorm:"not null;default:0" json:"max_redeemable_coins"`
	CoinExpiryDays      int             `gorm:"not null;default:0" json:"coin_expiry_days"`
	FirstPurchaseCoins  int64           `gorm:"not null;default:0" json:"first_purchase_coins"`
	Version             uint64          `gorm:"not null;default:0" json:"-"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletSettings) TableName() string { return "wallet_settings" }
