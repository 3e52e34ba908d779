package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/coin-wallet/internal/metrics"
	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletService glues business logic and repository.
type WalletService struct {
	repo       repo.RepositoryInterface
	log        *zap.SugaredLogger
	defaults   model.WalletSettings
	now        func() time.Time
	maxRetries int
	sweepBatch int
}

// Option customises a WalletService.
type Option func(*WalletService)

// WithClock replaces the wall clock used for expiry and entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *WalletService) { s.now = now }
}

// WithMaxRetries sets how often a mutation is retried after a version conflict.
func WithMaxRetries(n int) Option {
	return func(s *WalletService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithSettingsDefaults sets the row created by the first UpdateSettings.
func WithSettingsDefaults(d model.WalletSettings) Option {
	return func(s *WalletService) { s.defaults = d }
}

// WithSweepBatchSize sets how many credit entries the sweep loads per query.
func WithSweepBatchSize(n int) Option {
	return func(s *WalletService) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger, opts ...Option) *WalletService {
	s := &WalletService{
		repo: r,
		log:  logger,
		defaults: model.WalletSettings{
			CoinToCurrencyRatio: decimal.RequireFromString("0.01"),
			MaxRedeemableCoins:  500,
			CoinExpiryDays:      90,
		},
		now:        func() time.Time { return time.Now().UTC() },
		maxRetries: 3,
		sweepBatch: 200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreditRequest describes coins earned by a user.
type CreditRequest struct {
	UserID        uint64
	Amount        int64
	ReferenceType string
	ReferenceID   *uint64
	Description   string
}

// RedeemRequest describes coins spent by a user at checkout.
type RedeemRequest struct {
	UserID        uint64
	Amount        int64
	ReferenceType string
	ReferenceID   *uint64
	Description   string
}

// RedeemResult carries the updated wallet and the currency discount the
// caller applies to its order total.
type RedeemResult struct {
	Wallet         *model.Wallet   `json:"wallet"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type walletEvent struct {
	WalletID      uint64  `json:"wallet_id"`
	UserID        uint64  `json:"user_id"`
	EntryID       uint64  `json:"entry_id"`
	Amount        int64   `json:"amount"`
	Balance       int64   `json:"balance"`
	ReferenceType string  `json:"reference_type"`
	ReferenceID   *uint64 `json:"reference_id,omitempty"`
}

// Credit adds coins; auto-creates wallet if absent.
func (s *WalletService) Credit(ctx context.Context, req CreditRequest) (*model.Wallet, error) {
	w, err := s.credit(ctx, req)
	metrics.RecordOperation("credit", resultLabel(err))
	if err == nil {
		metrics.AddCoins(string(model.TxCredit), req.Amount)
	}
	return w, err
}

func (s *WalletService) credit(ctx context.Context, req CreditRequest) (*model.Wallet, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled {
		return nil, ErrWalletDisabled
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.ReferenceType == "" {
		req.ReferenceType = model.RefOrderReward
	}
	return s.inWalletTx(ctx, req.UserID, func(tx *gorm.DB, w *model.Wallet) error {
		return s.applyCredit(ctx, tx, w, settings, req)
	})
}

// applyCredit appends a CREDIT lot to a locked wallet.
func (s *WalletService) applyCredit(ctx context.Context, tx *gorm.DB, w *model.Wallet, settings *model.WalletSettings, req CreditRequest) error {
	w.Balance += req.Amount
	w.LifetimeEarned += req.Amount
	entry := &model.WalletTransaction{
		Amount:          req.Amount,
		TransactionType: model.TxCredit,
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		Description:     req.Description,
		ExpiresAt:       s.expiryFor(settings),
	}
	return s.appendEntry(ctx, tx, w, entry, model.EventCoinsCredited)
}

// Redeem converts coins into a currency discount.
func (s *WalletService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	res, err := s.redeem(ctx, req)
	metrics.RecordOperation("redeem", resultLabel(err))
	if err == nil {
		metrics.AddCoins(string(model.TxDebit), req.Amount)
	}
	return res, err
}

func (s *WalletService) redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.IsEnabled {
		return nil, ErrWalletDisabled
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount > settings.MaxRedeemableCoins {
		return nil, ErrExceedsMaxRedeemable
	}
	if req.ReferenceType == "" {
		req.ReferenceType = model.RefOrderRedemption
	}
	discount := decimal.NewFromInt(req.Amount).Mul(settings.CoinToCurrencyRatio).Round(2)

	w, err := s.inWalletTx(ctx, req.UserID, func(tx *gorm.DB, w *model.Wallet) error {
		// checked against the locked row, never a cached read
		if w.Balance < req.Amount {
			return ErrInsufficientBalance
		}
		w.Balance -= req.Amount
		w.LifetimeRedeemed += req.Amount
		entry := &model.WalletTransaction{
			Amount:          -req.Amount,
			TransactionType: model.TxDebit,
			ReferenceType:   req.ReferenceType,
			ReferenceID:     req.ReferenceID,
			Description:     req.Description,
		}
		return s.appendEntry(ctx, tx, w, entry, model.EventCoinsRedeemed)
	})
	if err != nil {
		return nil, err
	}
	return &RedeemResult{Wallet: w, DiscountAmount: discount}, nil
}

// Adjust applies an administrative correction. Negative adjustments still
// cannot take the balance below zero.
func (s *WalletService) Adjust(ctx context.Context, userID uint64, signedAmount int64, description string) (*model.Wallet, error) {
	w, err := s.adjust(ctx, userID, signedAmount, description)
	metrics.RecordOperation("adjust", resultLabel(err))
	if err == nil {
		if signedAmount > 0 {
			metrics.AddCoins(string(model.TxCredit), signedAmount)
		} else {
			metrics.AddCoins(string(model.TxDebit), signedAmount)
		}
	}
	return w, err
}

func (s *WalletService) adjust(ctx context.Context, userID uint64, signedAmount int64, description string) (*model.Wallet, error) {
	if signedAmount == 0 {
		return nil, ErrInvalidAmount
	}
	// positive corrections expire like any other lot once settings exist
	settings, err := s.loadSettings(ctx)
	if err != nil && !errors.Is(err, ErrSettingsNotConfigured) {
		return nil, err
	}
	if description == "" {
		description = "manual adjustment"
	}
	return s.inWalletTx(ctx, userID, func(tx *gorm.DB, w *model.Wallet) error {
		if w.Balance+signedAmount < 0 {
			return ErrInsufficientBalance
		}
		entry := &model.WalletTransaction{
			Amount:        signedAmount,
			ReferenceType: model.RefManualAdjustment,
			Description:   description,
		}
		w.Balance += signedAmount
		if signedAmount > 0 {
			entry.TransactionType = model.TxCredit
			entry.ExpiresAt = s.expiryFor(settings)
			w.LifetimeEarned += signedAmount
		} else {
			entry.TransactionType = model.TxDebit
		}
		return s.appendEntry(ctx, tx, w, entry, model.EventCoinsAdjusted)
	})
}

// GrantFirstPurchaseBonus credits the first-purchase bonus once per wallet.
// It returns nil, nil when the bonus was already granted or is configured as zero.
func (s *WalletService) GrantFirstPurchaseBonus(ctx context.Context, userID, orderID uint64) (*model.Wallet, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		metrics.RecordOperation("first_purchase", resultLabel(err))
		return nil, err
	}
	if !settings.IsEnabled {
		metrics.RecordOperation("first_purchase", resultLabel(ErrWalletDisabled))
		return nil, ErrWalletDisabled
	}
	if settings.FirstPurchaseCoins <= 0 {
		s.log.Infow("first purchase bonus not configured", "user_id", userID, "order_id", orderID)
		metrics.RecordOperation("first_purchase", "skipped")
		return nil, nil
	}

	granted := false
	w, err := s.inWalletTx(ctx, userID, func(tx *gorm.DB, w *model.Wallet) error {
		// under the wallet lock, so concurrent grants see each other
		exists, err := s.repo.HasReference(ctx, tx, w.ID, model.RefFirstPurchase)
		if err != nil {
			return fmt.Errorf("check first purchase bonus: %w", err)
		}
		if exists {
			return nil
		}
		granted = true
		return s.applyCredit(ctx, tx, w, settings, CreditRequest{
			UserID:        userID,
			Amount:        settings.FirstPurchaseCoins,
			ReferenceType: model.RefFirstPurchase,
			ReferenceID:   &orderID,
			Description:   fmt.Sprintf("first purchase bonus for order #%d", orderID),
		})
	})
	if err != nil {
		metrics.RecordOperation("first_purchase", resultLabel(err))
		return nil, err
	}
	if !granted {
		metrics.RecordOperation("first_purchase", "already_granted")
		return nil, nil
	}
	metrics.RecordOperation("first_purchase", "ok")
	metrics.AddCoins(string(model.TxCredit), settings.FirstPurchaseCoins)
	return w, nil
}

// inWalletTx runs fn against the user's locked wallet inside one database
// transaction, creating the wallet on first use. Version conflicts retry
// the whole unit.
func (s *WalletService) inWalletTx(ctx context.Context, userID uint64, fn func(tx *gorm.DB, w *model.Wallet) error) (*model.Wallet, error) {
	var out *model.Wallet
	var err error
	for attempt := 0; ; attempt++ {
		err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			w, err := s.repo.GetOrCreateWalletForUpdate(ctx, tx, userID)
			if err != nil {
				return fmt.Errorf("lock wallet: %w", err)
			}
			if err := fn(tx, w); err != nil {
				return err
			}
			out = w
			return nil
		})
		if !errors.Is(err, repo.ErrVersionConflict) || attempt >= s.maxRetries {
			break
		}
		s.log.Warnw("wallet version conflict, retrying", "user_id", userID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}
	s.cacheWallet(ctx, out)
	return out, nil
}

// appendEntry writes the ledger entry, the wallet row (already mutated by the
// caller) and the outbox event in the caller's transaction.
func (s *WalletService) appendEntry(ctx context.Context, tx *gorm.DB, w *model.Wallet, entry *model.WalletTransaction, eventType string) error {
	entry.WalletID = w.ID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.CreateTransaction(ctx, tx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := s.repo.UpdateWallet(ctx, tx, w); err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	payload, _ := json.Marshal(walletEvent{
		WalletID:      w.ID,
		UserID:        w.UserID,
		EntryID:       entry.ID,
		Amount:        entry.Amount,
		Balance:       w.Balance,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
	})
	evt := &model.OutboxEvent{
		Aggregate: "Wallet", AggregateID: w.ID, EventType: eventType, Payload: string(payload),
	}
	if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

func (s *WalletService) expiryFor(settings *model.WalletSettings) *time.Time {
	if settings == nil || settings.CoinExpiryDays <= 0 {
		return nil
	}
	t := s.now().AddDate(0, 0, settings.CoinExpiryDays)
	return &t
}

// cacheWallet writes a committed wallet through to the cache. Older versions
// never replace newer ones, so stale read-through fills lose.
func (s *WalletService) cacheWallet(ctx context.Context, w *model.Wallet) {
	if err := s.repo.CacheWallet(ctx, w); err != nil && !errors.Is(err, repo.ErrCacheDisabled) {
		s.log.Warn(err)
	}
}

// Repo exposes underlying repository (unit tests helper).
func (s *WalletService) Repo() repo.RepositoryInterface {
	return s.repo
}
