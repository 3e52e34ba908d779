package service

import (
	"context"
	"fmt"
	"math"

	"github.com/richardliu001/coin-wallet/internal/model"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionPage is one page of a wallet's ledger, newest first.
type TransactionPage struct {
	Transactions []model.WalletTransaction `json:"transactions"`
	Total        int64                     `json:"total"`
	Page         int                       `json:"page"`
	Limit        int                       `json:"limit"`
}

// GetWallet returns the user's wallet or nil; it never creates one.
func (s *WalletService) GetWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	if w, err := s.repo.GetCachedWallet(ctx, userID); err == nil {
		return w, nil
	}
	w, err := s.repo.FindWalletByUser(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	if w == nil {
		return nil, nil
	}
	s.cacheWallet(ctx, w)
	return w, nil
}

// GetOrCreateWallet returns the user's wallet, inserting an empty one on first use.
func (s *WalletService) GetOrCreateWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var out *model.Wallet
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return out, nil
}

// ListTransactions pages the user's ledger newest first. Page is 1-based.
func (s *WalletService) ListTransactions(ctx context.Context, userID uint64, page, limit int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	// keeps (page-1)*limit from overflowing; such pages are empty anyway
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	out := &TransactionPage{Transactions: []model.WalletTransaction{}, Page: page, Limit: limit}

	w, err := s.repo.FindWalletByUser(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	if w == nil {
		return out, nil
	}
	txs, total, err := s.repo.ListTransactions(ctx, w.ID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out.Transactions, out.Total = txs, total
	return out, nil
}

// GetStatistics aggregates the whole ledger.
func (s *WalletService) GetStatistics(ctx context.Context) (*model.Statistics, error) {
	st, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return st, nil
}
