package db

import (
	"path/filepath"
	"testing"

	"github.com/richardliu001/coin-wallet/internal/config"
	"github.com/richardliu001/coin-wallet/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrate_CreatesWalletSchema(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "wallet.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	m := gdb.Migrator()
	assert.True(t, m.HasTable(&model.WalletSettings{}))
	assert.True(t, m.HasTable(&model.Wallet{}))
	assert.True(t, m.HasTable(&model.WalletTransaction{}))
	assert.True(t, m.HasTable(&model.OutboxEvent{}))
	assert.True(t, m.HasIndex(&model.WalletTransaction{}, "OffsetTransactionID"))
}
