package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/richardliu001/coin-wallet/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type cacheEntry struct {
	version uint64
	data    []byte
}

// versionedCacheRepo keeps the cache in memory with the same store rule as
// redis: an entry is only replaced by a newer version. afterRead runs once,
// right after the next settings or wallet row is read from the database.
type versionedCacheRepo struct {
	repo.RepositoryInterface

	mu        sync.Mutex
	entries   map[string]cacheEntry
	afterRead func()
}

func newVersionedCacheRepo(r repo.RepositoryInterface) *versionedCacheRepo {
	return &versionedCacheRepo{RepositoryInterface: r, entries: map[string]cacheEntry{}}
}

func cachedWalletKey(userID uint64) string { return fmt.Sprintf("wallet:%d", userID) }

func (f *versionedCacheRepo) store(key string, version uint64, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.entries[key]; ok && cur.version >= version {
		return nil
	}
	f.entries[key] = cacheEntry{version: version, data: b}
	return nil
}

func (f *versionedCacheRepo) load(key string, v interface{}) error {
	f.mu.Lock()
	e, ok := f.entries[key]
	f.mu.Unlock()
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(e.data, v)
}

func (f *versionedCacheRepo) evict(key string) {
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

func (f *versionedCacheRepo) fireAfterRead() {
	f.mu.Lock()
	fn := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *versionedCacheRepo) GetSettings(ctx context.Context, tx *gorm.DB) (*model.WalletSettings, error) {
	s, err := f.RepositoryInterface.GetSettings(ctx, tx)
	f.fireAfterRead()
	return s, err
}

func (f *versionedCacheRepo) FindWalletByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	w, err := f.RepositoryInterface.FindWalletByUser(ctx, tx, userID)
	f.fireAfterRead()
	return w, err
}

func (f *versionedCacheRepo) CacheWallet(_ context.Context, w *model.Wallet) error {
	return f.store(cachedWalletKey(w.UserID), w.Version, w)
}

func (f *versionedCacheRepo) GetCachedWallet(_ context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := f.load(cachedWalletKey(userID), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (f *versionedCacheRepo) CacheSettings(_ context.Context, s *model.WalletSettings) error {
	return f.store("settings", s.Version, s)
}

func (f *versionedCacheRepo) GetCachedSettings(context.Context) (*model.WalletSettings, error) {
	var s model.WalletSettings
	if err := f.load("settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func TestSettingsCache_StaleFillDoesNotHideUpdate(t *testing.T) {
	base, clock, ctx := newTestService(t)
	cache := newVersionedCacheRepo(base.Repo())
	svc := NewWalletService(cache, base.log, WithClock(clock.Now))
	seedSettings(t, svc)

	// the cached row expired; a reader loads it just before an admin disables the wallet
	cache.evict("settings")
	cache.afterRead = func() {
		_, err := svc.UpdateSettings(ctx, SettingsPatch{IsEnabled: ptr(false)})
		require.NoError(t, err)
	}
	s, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsEnabled, "reader started before the update")

	_, err = svc.Credit(ctx, CreditRequest{UserID: 1, Amount: 10})
	assert.ErrorIs(t, err, ErrWalletDisabled)
	_, err = svc.Redeem(ctx, RedeemRequest{UserID: 1, Amount: 1})
	assert.ErrorIs(t, err, ErrWalletDisabled)
}

func TestUpdateSettings_AdvancesVersion(t *testing.T) {
	svc, _, ctx := newTestService(t)
	seedSettings(t, svc)
	_, err := svc.UpdateSettings(ctx, SettingsPatch{MaxRedeemableCoins: ptr(int64(10))})
	require.NoError(t, err)
	_, err = svc.UpdateSettings(ctx, SettingsPatch{})
	require.NoError(t, err)

	row, err := svc.Repo().GetSettings(ctx, svc.Repo().DB(ctx))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), row.Version)
}

func TestWalletCache_StaleFillDoesNotHideMutation(t *testing.T) {
	base, clock, ctx := newTestService(t)
	cache := newVersionedCacheRepo(base.Repo())
	svc := NewWalletService(cache, base.log, WithClock(clock.Now))
	seedSettings(t, svc)
	_, err := svc.Credit(ctx, CreditRequest{UserID: 3, Amount: 10})
	require.NoError(t, err)

	// a reader misses the cache and loads the row just before a credit commits
	cache.evict(cachedWalletKey(3))
	cache.afterRead = func() {
		_, err := svc.Credit(ctx, CreditRequest{UserID: 3, Amount: 5})
		require.NoError(t, err)
	}
	w, err := svc.GetWallet(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), w.Balance)

	w, err = svc.GetWallet(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(15), w.Balance)
}

func TestWalletCache_SweepWritesThrough(t *testing.T) {
	base, clock, ctx := newTestService(t)
	cache := newVersionedCacheRepo(base.Repo())
	svc := NewWalletService(cache, base.log, WithClock(clock.Now))
	seedSettings(t, svc)
	_, err := svc.Credit(ctx, CreditRequest{UserID: 4, Amount: 10})
	require.NoError(t, err)
	w, err := svc.GetWallet(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(10), w.Balance)

	clock.AdvanceDays(91)
	n, err := svc.ProcessExpiredCoins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	w, err = svc.GetWallet(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
}
