package db

import (
	"fmt"

	"github.com/richardliu001/coin-wallet/internal/config"
	"github.com/richardliu001/coin-wallet/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects gorm using the configured driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return gorm.Open(dialector, &gorm.Config{PrepareStmt: true, TranslateError: true})
}

// Migrate creates or updates the wallet schema.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.WalletSettings{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.OutboxEvent{},
	)
}
