package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"partsmarket/config"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/notifications"
	"partsmarket/internal/domain/orders"
	"partsmarket/internal/domain/outbox"
	"partsmarket/internal/domain/payments"
	"partsmarket/internal/domain/requests"
	"partsmarket/internal/domain/shops"
	"partsmarket/internal/domain/users"
	"partsmarket/internal/domain/webhooks"
)

// Open connects using cfg.DBDriver. The caller owns the returned handle.
func Open(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DBURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Info("database connected", "driver", db.Dialector.Name())
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
			return fmt.Errorf("enable pgcrypto: %w", err)
		}
	}

	if err := db.AutoMigrate(
		// accounts
		&users.Profile{},
		&shops.Shop{},
		&shops.ShopCustomer{},

		// orders and money
		&requests.PartRequest{},
		&orders.Order{},
		&payments.Payment{},

		// delivery and bookkeeping
		&notifications.Notification{},
		&webhooks.Event{},
		&outbox.Message{},
		&audit.Entry{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
