// Package db opens and migrates the relational store behind netlog.
package db

import (
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold is the query latency above which gorm logs a warning.
const slowQueryThreshold = 500 * time.Millisecond

// MySQLDSN builds a go-sql-driver DSN. An empty database selects none, which
// is what CREATE DATABASE needs.
func MySQLDSN(cfg config.DatabaseConfig, database string) string {
	userinfo := cfg.User
	if cfg.Password != "" {
		userinfo += ":" + cfg.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC", userinfo, cfg.Host, cfg.Port, database)
}

// PostgresDSN builds a libpq-style URL for the pgx driver.
func PostgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=disable&TimeZone=UTC",
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String()
}

// Dialector returns the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.Path), nil
	case "mysql":
		return mysql.Open(MySQLDSN(cfg, cfg.Name)), nil
	case "postgres":
		return postgres.Open(PostgresDSN(cfg)), nil
	}
	return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
}

// Connect opens a gorm connection for the configured driver. Queries are
// logged through log at warn level and above.
func Connect(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", describe(cfg), err)
	}
	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		// A single connection keeps sqlite writers from tripping over
		// SQLITE_BUSY, and keeps ":memory:" databases on one handle.
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect %s: %w", describe(cfg), err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gormDB, nil
}

// OpenMemory opens a migrated, private in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, nil)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// EnsureDatabase creates the configured database on servers that need it
// created up front. sqlite creates its file on open and postgres databases
// are provisioned by the operator, so only mysql does any work.
func EnsureDatabase(cfg config.DatabaseConfig) error {
	if cfg.Driver != "mysql" {
		return nil
	}
	adminDB, err := gorm.Open(mysql.Open(MySQLDSN(cfg, "")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return createDatabase(adminDB, cfg.Name)
}

// createDatabase runs CREATE DATABASE on an admin connection and closes it.
func createDatabase(adminDB *gorm.DB, name string) error {
	if sqlDB, err := adminDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// describe names the target database without leaking credentials.
func describe(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		return "sqlite " + cfg.Path
	}
	return fmt.Sprintf("%s %s:%d/%s", cfg.Driver, cfg.Host, cfg.Port, cfg.Name)
}

// newLogger bridges gorm's logger to logrus. A nil log silences gorm.
func newLogger(log logrus.FieldLogger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
