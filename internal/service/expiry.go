package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/coin-wallet/internal/metrics"
	"github.com/richardliu001/coin-wallet/internal/model"
	"gorm.io/gorm"
)

// ProcessExpiredCoins offsets every CREDIT lot past its expiry with an
// EXPIRED entry and returns the number of coins expired by this run.
//
// A lot is expired by its full original amount and the wallet balance is
// floored at zero; coins already spent from the lot are not tracked.
// Entries that fail are logged and left for the next run.
func (s *WalletService) ProcessExpiredCoins(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := s.now()

	var (
		afterID uint64
		coins   int64
		entries int
		failed  int
	)
	for {
		batch, err := s.repo.FindExpirableCredits(ctx, cutoff, afterID, s.sweepBatch)
		if err != nil {
			err = fmt.Errorf("find expirable credits: %w", err)
			metrics.RecordSweep(time.Since(start), failed, err)
			return coins, err
		}
		for i := range batch {
			credit := batch[i]
			afterID = credit.ID
			done, err := s.expireCredit(ctx, &credit)
			if err != nil {
				failed++
				s.log.Errorw("expire credit entry failed",
					"transaction_id", credit.ID, "wallet_id", credit.WalletID, "error", err)
				continue
			}
			if done {
				entries++
				coins += credit.Amount
			}
		}
		if len(batch) < s.sweepBatch {
			break
		}
	}

	metrics.RecordSweep(time.Since(start), failed, nil)
	metrics.AddCoins(string(model.TxExpired), coins)
	s.log.Infow("expiry sweep finished", "entries", entries, "coins", coins, "failed", failed,
		"cutoff", cutoff, "elapsed", time.Since(start))
	return coins, nil
}

// expireCredit writes the compensating entry for one lot. It reports false
// when another run already offset the lot.
func (s *WalletService) expireCredit(ctx context.Context, credit *model.WalletTransaction) (bool, error) {
	var expired *model.Wallet
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWalletForUpdate(ctx, tx, credit.WalletID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		offset, err := s.repo.IsOffset(ctx, tx, credit.ID)
		if err != nil {
			return fmt.Errorf("check offset: %w", err)
		}
		if offset {
			return nil
		}

		w.Balance -= credit.Amount
		if w.Balance < 0 {
			w.Balance = 0
		}
		creditID := credit.ID
		entry := &model.WalletTransaction{
			Amount:              -credit.Amount,
			TransactionType:     model.TxExpired,
			ReferenceType:       model.RefExpired,
			ReferenceID:         &creditID,
			OffsetTransactionID: &creditID,
			Description:         fmt.Sprintf("coins from transaction #%d expired", creditID),
		}
		if err := s.appendEntry(ctx, tx, w, entry, model.EventCoinsExpired); err != nil {
			return err
		}
		expired = w
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if expired == nil {
		return false, nil
	}
	s.cacheWallet(ctx, expired)
	return true, nil
}
