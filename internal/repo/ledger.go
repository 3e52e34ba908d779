package repo

import (
	"context"
	"time"

	"github.com/richardliu001/coin-wallet/internal/model"
	"gorm.io/gorm"
)

// CreateTransaction appends a ledger entry.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// HasReference reports whether the wallet has any entry with referenceType.
func (r *Repository) HasReference(ctx context.Context, tx *gorm.DB, walletID uint64, referenceType string) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.WalletTransaction{}).
		Where("wallet_id = ? AND reference_type = ?", walletID, referenceType).
		Limit(1).Count(&n).Error
	return n > 0, err
}

// IsOffset reports whether an EXPIRED entry already compensates creditID.
func (r *Repository) IsOffset(ctx context.Context, tx *gorm.DB, creditID uint64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.WalletTransaction{}).
		Where("transaction_type = ? AND reference_id = ?", model.TxExpired, creditID).
		Count(&n).Error
	return n > 0, err
}

// FindExpirableCredits returns CREDIT entries past expiry with no EXPIRED
// offset, ordered by id and starting after afterID.
func (r *Repository) FindExpirableCredits(ctx context.Context, now time.Time, afterID uint64, limit int) ([]model.WalletTransaction, error) {
	var out []model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_type = ? AND expires_at IS NOT NULL AND expires_at <= ? AND id > ?", model.TxCredit, now, afterID).
		Where("NOT EXISTS (SELECT 1 FROM wallet_transaction e WHERE e.transaction_type = ? AND e.reference_id = wallet_transaction.id)", model.TxExpired).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListTransactions pages a wallet's ledger newest first.
func (r *Repository) ListTransactions(ctx context.Context, walletID uint64, offset, limit int) ([]model.WalletTransaction, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("wallet_id = ?", walletID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	txs := make([]model.WalletTransaction, 0, limit)
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&txs).Error
	return txs, total, err
}

// Statistics sums the ledger by type and counts wallets.
func (r *Repository) Statistics(ctx context.Context) (*model.Statistics, error) {
	var sums []struct {
		TransactionType model.TransactionType
		Total           int64
	}
	if err := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).
		Select("transaction_type, COALESCE(SUM(amount), 0) AS total").
		Group("transaction_type").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	var agg struct {
		WalletCount int64
		Outstanding int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Wallet{}).
		Select("COUNT(*) AS wallet_count, COALESCE(SUM(balance), 0) AS outstanding").
		Scan(&agg).Error; err != nil {
		return nil, err
	}

	stats := &model.Statistics{WalletCount: agg.WalletCount, OutstandingBalance: agg.Outstanding}
	for _, s := range sums {
		switch s.TransactionType {
		case model.TxCredit:
			stats.TotalIssued = s.Total
		case model.TxDebit:
			stats.TotalRedeemed = -s.Total
		case model.TxExpired:
			stats.TotalExpired = -s.Total
		}
	}
	return stats, nil
}
