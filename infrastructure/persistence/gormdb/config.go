/*
Package gormdb GORM persistence for production records, preview tokens and
the mutation audit log. MySQL is the production backend; SQLite serves single
node deployments and repository tests.

Repositories read the transaction from the context when one is attached
(see persistence.ContextWithTx) and fall back to the shared handle otherwise.
Associations are never used; records reference each other by ID only.
*/
package gormdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"factoryops/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 10 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	Driver          string        `mapstructure:"driver" json:"driver"`
	Host            string        `mapstructure:"host" json:"host"`
	Port            string        `mapstructure:"port" json:"port"`
	Username        string        `mapstructure:"username" json:"username"`
	Password        string        `mapstructure:"password" json:"-"`
	Database        string        `mapstructure:"database" json:"database"`
	SQLitePath      string        `mapstructure:"sqlite_path" json:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level"`
}

func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4&collation=utf8mb4_unicode_ci&readTimeout=10s&writeTimeout=10s",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *Config) parseLogLevel() gormlogger.LogLevel {
	switch c.LogLevel {
	case "debug", "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

func (c *Config) applyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	// SQLite allows one writer; a single connection turns contention into queueing.
	if c.Driver == DriverSQLite {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
}

func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverMySQL:
		return mysql.Open(c.DSN()), nil
	case DriverSQLite:
		if c.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite_path is required for the sqlite driver")
		}
		if err := os.MkdirAll(filepath.Dir(c.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		return sqlite.Open(c.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func (c *Config) Connect() (*gorm.DB, error) {
	c.applyDefaults()
	dialector, err := c.dialector()
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(c.parseLogLevel()),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	logger.Info("Database connected",
		zap.String("driver", c.Driver),
		zap.String("host", c.Host),
		zap.String("database", c.Database),
		zap.String("sqlite_path", c.SQLitePath),
		zap.Int("max_open_conns", c.MaxOpenConns),
		zap.Int("max_idle_conns", c.MaxIdleConns),
		zap.Duration("conn_max_lifetime", c.ConnMaxLifetime),
	)

	return db, nil
}

// Ping checks an open handle; used by the readiness probe.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
