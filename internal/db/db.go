package db

import (
	"errors"
	"os"
	"time"

	"pixpot/internal/config"
	"pixpot/internal/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to the configured database (DATABASE_URL, DB_DRIVER).
func Open(cfg config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}
	conn, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second)
	return conn, nil
}

// singleActiveIndex keeps at most one active round. MySQL has no partial
// indexes, so there the activation transaction alone serializes writers.
const singleActiveIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_images_single_active ON images (status) WHERE status = 'active'`

// Migrate runs GORM auto-migrations for the core tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&Image{},
		&RevealedPixel{},
		&Guess{},
		&Event{},
	); err != nil {
		return err
	}
	if conn.Dialector.Name() == "postgres" {
		if err := conn.Exec(singleActiveIndex).Error; err != nil {
			return err
		}
	}
	logger.Log.Info("database migration complete")
	return nil
}
