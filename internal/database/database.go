package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/config"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db

	slog.Info("database connected", "driver", cfg.DBDriver)
	return nil
}

// Open returns a configured connection without touching the package-level DB.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBSQLitePath)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// SQLite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	return db, nil
}

// MigrateShared runs AutoMigrate for shared models.
func MigrateShared(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.PasswordResetToken{},
		&models.Document{},
		&models.SystemLog{},
	)
}

// MigrateModels runs AutoMigrate for arbitrary models (used by plugins).
func MigrateModels(db *gorm.DB, modelList []interface{}) error {
	if len(modelList) == 0 {
		return nil
	}
	return db.AutoMigrate(modelList...)
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
