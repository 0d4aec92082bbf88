package persistence

import (
	"fmt"
	"time"

	"github.com/permitflow/backend/internal/infrastructure/config"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// Options tune the gorm session a Database opens
type Options struct {
	LogLevel string
	Tracing  telemetry.DBTracingConfig
}

// NewDatabase opens a PostgreSQL connection, configures the pool and
// registers SQL logging and tracing.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, opts Options) (*Database, error) {
	slow := opts.Tracing.SlowQueryThresh
	if slow == 0 {
		slow = defaultSlowQueryThreshold
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(opts.LogLevel), slow),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, opts.Tracing, zapLogger); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
