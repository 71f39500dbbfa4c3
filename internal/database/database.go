// Package database wires gorm against sqlite or postgres, grounded on the
// teacher's backend/internal/database/database.go (dual-driver connect
// functions, WAL pragmas for sqlite, pool tuning per driver, health check).
// It backs admin session history and the thin UserStore CRUD collaborator
// — never the live in-memory session registry, which SessionManager owns
// directly per the spec's ownership rules.
package database

import (
	"fmt"
	"time"

	"github.com/mantonx/hlscore/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database, applies pool tuning, and
// auto-migrates the schema this module owns.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch cfg.Type {
	case "postgres":
		db, err = connectPostgres(cfg)
	case "sqlite":
		db, err = connectSQLite(cfg)
	default:
		return nil, fmt.Errorf("database: unsupported type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if err := configurePool(db, cfg.Type); err != nil {
		return nil, fmt.Errorf("database: configure pool: %w", err)
	}

	if err := db.AutoMigrate(&SessionRecord{}, &User{}, &WatchProgress{}, &Rating{}, &PlaylistEntry{}); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	return db, nil
}

func connectPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.PostgresHost, cfg.PostgresUser, cfg.PostgresPass, cfg.PostgresDB, cfg.PostgresPort)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		CreateBatchSize:        1000,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
}

func connectSQLite(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.SQLitePath + "?" +
		"cache=shared&" +
		"mode=rwc&" +
		"_journal_mode=WAL&" +
		"_synchronous=NORMAL&" +
		"_busy_timeout=30000&" +
		"_foreign_keys=ON"

	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		CreateBatchSize:        500,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
}

func configurePool(db *gorm.DB, dbType string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}

	maxOpen, maxIdle, lifetime := 25, 5, time.Hour
	if dbType == "postgres" {
		maxOpen, maxIdle, lifetime = 100, 20, 2*time.Hour
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return sqlDB.Ping()
}

// HealthCheck reports whether the database connection is usable, backing
// the /readyz endpoint (§6.2).
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
