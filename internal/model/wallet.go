package model

import "time"

// Wallet is the cached per-user aggregate of the coin ledger.
type Wallet struct {
	ID               uint64    `gorm:"primaryKey;column:id" json:"id"`
	UserID           uint64    `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance          int64     `gorm:"not null;default:0" json:"balance"`
	LifetimeEarned   int64     `gorm:"not null;default:0" json:"lifetime_earned"`
	LifetimeRedeemed int64     `gorm:"not null;default:0" json:"lifetime_redeemed"`
	Version          uint64    `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallet" }
