package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// failingRepo fails to lock one wallet so sweep isolation can be observed.
type failingRepo struct {
	repo.RepositoryInterface
	failWalletID uint64
}

func (f *failingRepo) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) (*model.Wallet, error) {
	if walletID == f.failWalletID {
		return nil, errors.New("row lock timeout")
	}
	return f.RepositoryInterface.GetWalletForUpdate(ctx, tx, walletID)
}

func expiredEntries(t *testing.T, svc *WalletService) []model.WalletTransaction {
	t.Helper()
	var txs []model.WalletTransaction
	require.NoError(t, svc.Repo().DB(context.Background()).
		Where("transaction_type = ?", model.TxExpired).Order("id").Find(&txs).Error)
	return txs
}

func TestProcessExpiredCoins_Idempotent(t *testing.T) {
	svc, clock, ctx := newTestService(t)
	seedSettings(t, svc)
	for user := uint64(1); user <= 3; user++ {
		_, err := svc.Credit(ctx, CreditRequest{UserID: user, Amount: int64(user * 10)})
		require.NoError(t, err)
	}
	clock.AdvanceDays(10)
	_, err := svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 5})
	require.NoError(t, err)

	clock.AdvanceDays(85) // first lots are 95 days old, the later one 85
	first, err := svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), first)

	balances := map[uint64]int64{}
	for user := uint64(1); user <= 3; user++ {
		w, err := svc.GetWallet(ctx, user)
		require.NoError(t, err)
		balances[user] = w.Balance
	}
	assert.Equal(t, map[uint64]int64{1: 5, 2: 0, 3: 0}, balances)

	second, err := svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
	for user := uint64(1); user <= 3; user++ {
		w, err := svc.GetWallet(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, balances[user], w.Balance)
	}
	assert.Len(t, expiredEntries(t, svc), 3)
}

func TestProcessExpiredCoins_ConcurrentRunsOffsetOnce(t *testing.T) {
	svc, clock, ctx := newTestService(t)
	seedSettings(t, svc)
	for user := uint64(1); user <= 6; user++ {
		_, err := svc.Credit(ctx, CreditRequest{UserID: user, Amount: 10})
		require.NoError(t, err)
	}
	clock.AdvanceDays(91)

	var wg sync.WaitGroup
	totals := make([]int64, 3)
	for i := range totals {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := svc.ProcessExpiredCoins(ctx)
			assert.NoError(t, err)
			totals[i] = n
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(60), totals[0]+totals[1]+totals[2])
	expired := expiredEntries(t, svc)
	assert.Len(t, expired, 6)
	seen := map[uint64]bool{}
	for _, e := range expired {
		assert.False(t, seen[*e.ReferenceID], "credit %d offset twice", *e.ReferenceID)
		seen[*e.ReferenceID] = true
	}
}

func TestProcessExpiredCoins_SmallBatchesCoverAllLots(t *testing.T) {
	svc, clock, ctx := newTestService(t)
	seedSettings(t, svc)
	svc.sweepBatch = 2
	for i := 0; i < 5; i++ {
		_, err := svc.Credit(ctx, CreditRequest{UserID: 9, Amount: 4})
		require.NoError(t, err)
	}
	clock.AdvanceDays(90)

	n, err := svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
	w, err := svc.GetWallet(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
	assert.Equal(t, w.Balance, ledgerSum(ledgerOf(t, svc, w.ID)))
}

func TestProcessExpiredCoins_FailureIsIsolated(t *testing.T) {
	svc, clock, ctx := newTestService(t)
	seedSettings(t, svc)
	bad, err := svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 10})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, CreditRequest{UserID: 2, Amount: 20})
	require.NoError(t, err)
	clock.AdvanceDays(91)

	flaky := NewWalletService(&failingRepo{RepositoryInterface: svc.Repo(), failWalletID: bad.ID}, svc.log, WithClock(clock.Now))
	n, err := flaky.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	// the skipped lot is picked up by the next healthy run
	n, err = svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestProcessExpiredCoins_IgnoresUnexpiredAndNonExpiringLots(t *testing.T) {
	svc, clock, ctx := newTestService(t)
	seedSettings(t, svc)
	_, err := svc.Credit(ctx, CreditRequest{UserID: 4, Amount: 10})
	require.NoError(t, err)

	_, err = svc.UpdateSettings(ctx, SettingsPatch{CoinExpiryDays: ptr(0)})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, CreditRequest{UserID: 4, Amount: 7})
	require.NoError(t, err)

	clock.AdvanceDays(89)
	n, err := svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	clock.AdvanceDays(3650)
	n, err = svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	w, err := svc.GetWallet(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.Balance)
}
