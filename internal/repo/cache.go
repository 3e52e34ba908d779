package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/coin-wallet/internal/model"
)

// ErrCacheDisabled is returned by cache methods when no redis client is set.
var ErrCacheDisabled = errors.New("cache disabled")

const settingsCacheKey = "wallet:settings"

func walletCacheKey(userID uint64) string { return fmt.Sprintf("wallet:user:%d", userID) }

func uint64String(v uint64) string { return strconv.FormatUint(v, 10) }

// Entries are hashes {v: row version, d: json}. storeIfNewer only replaces an
// entry holding an older version, so a read-through fill that loaded the row
// before a commit cannot overwrite the value the committer stored.
const storeIfNewerLua = `
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'd', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`

var storeIfNewer = redis.NewScript(storeIfNewerLua)

func (r *Repository) storeVersioned(ctx context.Context, key string, version uint64, v interface{}, ttl time.Duration) error {
	if r.rdb == nil {
		return ErrCacheDisabled
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return storeIfNewer.Run(ctx, r.rdb, []string{key}, version, b, ttl.Milliseconds()).Err()
}

func (r *Repository) loadCached(ctx context.Context, key string, v interface{}) error {
	if r.rdb == nil {
		return ErrCacheDisabled
	}
	b, err := r.rdb.HGet(ctx, key, "d").Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// CacheWallet stores w unless a same or newer version is already cached.
func (r *Repository) CacheWallet(ctx context.Context, w *model.Wallet) error {
	return r.storeVersioned(ctx, walletCacheKey(w.UserID), w.Version, w, r.walletTTL)
}

// GetCachedWallet reads Redis; redis.Nil on miss.
func (r *Repository) GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.loadCached(ctx, walletCacheKey(userID), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// CacheSettings stores s unless a same or newer version is already cached.
func (r *Repository) CacheSettings(ctx context.Context, s *model.WalletSettings) error {
	return r.storeVersioned(ctx, settingsCacheKey, s.Version, s, r.settingsTTL)
}

// GetCachedSettings reads Redis; redis.Nil on miss.
func (r *Repository) GetCachedSettings(ctx context.Context) (*model.WalletSettings, error) {
	var s model.WalletSettings
	if err := r.loadCached(ctx, settingsCacheKey, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
