package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/SnapLink/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultConnMaxLifetime = 5 * time.Minute

// NewGorm returns a gorm.DB configured for the application's Postgres
// instance. Slow queries and errors are reported through zapLogger.
func NewGorm(cfg config.PostgresConfig, zapLogger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(ConnString(cfg)), &gorm.Config{
		Logger:                                   newGormLogger(zapLogger),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: retrieve sql db: %w", err)
	}

	lifetime := defaultConnMaxLifetime
	if d, ok := parseDuration(cfg.MaxConnLifetime); ok {
		lifetime = d
	}
	sqlDB.SetConnMaxLifetime(lifetime)
	if d, ok := parseDuration(cfg.MaxConnIdleTime); ok {
		sqlDB.SetConnMaxIdleTime(d)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		sqlDB.SetMaxIdleConns(int(cfg.MinConns))
	}

	return db, nil
}

// AutoMigrate uses GORM to perform schema migrations for the provided models.
func AutoMigrate(ctx context.Context, db *gorm.DB, models ...interface{}) error {
	if db == nil || len(models) == 0 {
		return nil
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("postgres: auto migrate: %w", err)
	}

	return nil
}

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger forwards gorm's trace output to zap.
type gormLogger struct {
	log   *zap.Logger
	level logger.LogLevel
}

func newGormLogger(l *zap.Logger) logger.Interface {
	if l == nil {
		return logger.Default.LogMode(logger.Warn)
	}
	return &gormLogger{log: l.Named("gorm"), level: logger.Warn}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Info {
		g.log.Sugar().Infof(msg, args...)
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Warn {
		g.log.Sugar().Warnf(msg, args...)
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Error {
		g.log.Sugar().Errorf(msg, args...)
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Error("query failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	case elapsed > slowQueryThreshold && g.level >= logger.Warn:
		sql, rows := fc()
		g.log.Warn("slow query", zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	case g.level >= logger.Info:
		sql, rows := fc()
		g.log.Debug("query", zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	}
}
