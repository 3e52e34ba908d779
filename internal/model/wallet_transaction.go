package model

import "time"

// TransactionType is the sign class of a ledger entry.
type TransactionType string

const (
	TxCredit  TransactionType = "CREDIT"
	TxDebit   TransactionType = "DEBIT"
	TxExpired TransactionType = "EXPIRED"
)

// Well-known reference types. Callers may pass their own.
const (
	RefFirstPurchase    = "FIRST_PURCHASE"
	RefOrderRedemption  = "ORDER_REDEMPTION"
	RefOrderReward      = "ORDER_REWARD"
	RefManualAdjustment = "MANUAL_ADJUSTMENT"
	RefExpired          = "EXPIRED"
)

// WalletTransaction is an append-only ledger entry. Rows are never updated.
type WalletTransaction struct {
	ID              uint64          `gorm:"primaryKey" json:"id"`
	WalletID        uint64          `gorm:"not null;index:idx_wallet_tx_wallet_created,priority:1" json:"wallet_id"`
	Amount          int64           `gorm:"not null" json:"amount"`
	TransactionType TransactionType `gorm:"size:16;not null;index:idx_wallet_tx_type_expires,priority:1" json:"transaction_type"`
	ReferenceType   string          `gorm:"size:32;not null;index" json:"reference_type"`
	ReferenceID     *uint64         `gorm:"index" json:"reference_id,omitempty"`
	Description     string          `gorm:"size:255" json:"description"`
	ExpiresAt       *time.Time      `gorm:"index:idx_wallet_tx_type_expires,priority:2" json:"expires_at,omitempty"`
	// OffsetTransactionID is set only on EXPIRED entries; the unique index
	// allows at most one compensating entry per credit lot.
	OffsetTransactionID *uint64   `gorm:"uniqueIndex" json:"-"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index:idx_wallet_tx_wallet_created,priority:2" json:"created_at"`
}

func (WalletTransaction) TableName() string { return "wallet_transaction" }
