// Package database opens the primary store and optional read replica.
package database

import (
	"fmt"
	"time"

	"mainq/internal/config"
	"mainq/internal/middleware"
	"mainq/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// replica serves catalog reads when DB_READ_HOST is set.
var replica *gorm.DB

// PersistentModels lists every table the server owns, parents first.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Profile{},
		&models.Item{},
		&models.Article{},
		&models.Comment{},
		&models.Notification{},
	}
}

// PostgresDSN renders the keyword/value connection string for cfg.
func PostgresDSN(cfg *config.Config) string {
	ssl := cfg.DBSSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, ssl)
}

func open(d gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(d, &gorm.Config{Logger: newQueryLogger(middleware.Logger)})
}

func tunePool(db *gorm.DB, sqlite bool) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	// SQLite allows a single writer.
	if sqlite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
}

// Connect opens the configured store. Tables are migrated automatically
// except in production, where `cmd/admin migrate` is run explicitly.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	useSQLite := cfg.DBDriver == "sqlite"

	var d gorm.Dialector
	if useSQLite {
		d = sqlite.Open(cfg.SQLitePath)
	} else {
		d = postgres.Open(PostgresDSN(cfg))
	}
	db, err := open(d)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	tunePool(db, useSQLite)
	middleware.Logger.Info("database connected", "driver", cfg.DBDriver)

	if !cfg.IsProduction() {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	replica = nil
	if !useSQLite && cfg.DBReadHost != "" {
		if r, err := connectReplica(cfg); err != nil {
			middleware.Logger.Warn("read replica unavailable, reading from primary", "error", err)
		} else {
			replica = r
		}
	}
	return db, nil
}

func connectReplica(cfg *config.Config) (*gorm.DB, error) {
	rc := *cfg
	rc.DBHost, rc.DBPort = cfg.DBReadHost, cfg.DBReadPort
	rc.DBUser, rc.DBPassword = cfg.DBReadUser, cfg.DBReadPassword

	db, err := open(postgres.Open(PostgresDSN(&rc)))
	if err != nil {
		return nil, fmt.Errorf("open read replica: %w", err)
	}
	tunePool(db, false)
	middleware.Logger.Info("read replica connected", "host", cfg.DBReadHost)
	return db, nil
}

// GetReadDB returns the replica, or nil when reads use the primary.
func GetReadDB() *gorm.DB {
	return replica
}

// Migrate creates or alters every table in PersistentModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
