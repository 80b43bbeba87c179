package postgres

import (
	"errors"
	"facility-uptime-monitor/internal/config"
	"facility-uptime-monitor/internal/infrastructure/database/postgres/models"
	"facility-uptime-monitor/internal/logger"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns = 25
	maxIdleConns = 5
)

type DB struct {
	*gorm.DB
}

func NewDB(cfg *config.Config) (*DB, error) {
	return Open(cfg.Database.DSN(), cfg.Server.Environment)
}

// Open connects with an explicit DSN; integration tests use it directly.
func Open(dsn, environment string) (*DB, error) {
	var gormLogLevel gormLogger.LogLevel
	if environment == "production" {
		gormLogLevel = gormLogger.Warn
	} else {
		gormLogLevel = gormLogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_connections", maxOpenConns),
		zap.Int("max_idle_connections", maxIdleConns),
	)

	return &DB{DB: db}, nil
}

// Migrate creates or updates the tables backing the stores.
func (d *DB) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.DeviceModel{},
		&models.OutageIntervalModel{},
		&models.EmailLogModel{},
		&models.UptimeSnapshotModel{},
		&models.AlertEmailModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database schema migrated")
	return nil
}

func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *DB) Health() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
