package db

import (
	"time"

	"github.com/pazarlabs/pazar/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open builds the shared gorm handle from configuration. Connection lifecycle
// is owned by the process entry point; services receive the handle injected.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)

	return gormDB, nil
}

// NewGormLogger adapts zap to gorm's logger interface at Warn level, with a
// 200ms slow-query threshold.
func NewGormLogger(log *zap.Logger) gormlogger.Interface {
	return &zapGormLogger{log: log.Named("gorm"), level: gormlogger.Warn, slow: 200 * time.Millisecond}
}

// Module provides the gorm handle for the whole application.
var Module = fx.Module("db",
	fx.Provide(Open),
)
