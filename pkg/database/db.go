// Package database persists the portable registry and the call log.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Use modernc.org/sqlite (pure Go, no CGO)
	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

const (
	memoryPath    = ":memory:"
	slowQuery     = 200 * time.Millisecond
	busyTimeoutMS = 5000
)

// DB is the registry store
type DB struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite file, ":memory:" for a private in-memory store
	Path string
}

// NewDB opens the store at cfg.Path and migrates the schema
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = "dect-nwk.db"
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("database")

	memory := cfg.Path == memoryPath
	if !memory {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}, &gorm.Config{
		Logger: &gormLog{log: log, level: gormlogger.Warn},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	pragmas := []string{fmt.Sprintf("busy_timeout=%d", busyTimeoutMS)}
	if memory {
		// every pooled connection would see its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "journal_mode=WAL", "synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec("PRAGMA " + p); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p, err)
		}
	}

	if err := db.AutoMigrate(&Portable{}, &CallRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database initialized", logger.String("path", cfg.Path))
	return &DB{db: db, logger: log}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database instance
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLog routes GORM diagnostics into the structured logger. Statements
// are traced at debug level, slow ones and failures at warn.
type gormLog struct {
	log   *logger.Logger
	level gormlogger.LogLevel
}

func (g *gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLog{log: g.log, level: level}
}

func (g *gormLog) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.log.Warn("Query failed",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Error(err))
	case elapsed > slowQuery && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.Warn("Slow query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed))
	case g.log.Enabled(logger.DebugLevel):
		sql, rows := fc()
		g.log.Debug("Query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed))
	}
}
