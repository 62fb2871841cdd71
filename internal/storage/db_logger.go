package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	customlogger "tg-vaultbot/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger routes gorm's logs through the application logger.
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewCustomGormLogger maps the application log level onto gorm's levels.
// SQL traces are only written when the application runs at DEBUG.
func NewCustomGormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch customlogger.ParseLevel(level) {
	case customlogger.LevelDebug:
		logLevel = logger.Info
	case customlogger.LevelInfo, customlogger.LevelWarning:
		logLevel = logger.Warn
	default:
		logLevel = logger.Error
	}

	return &CustomGormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace logs failed statements as errors, slow ones as warnings and everything else at debug.
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	ms := float64(elapsed.Nanoseconds()) / 1e6

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, _ := fc()
		customlogger.Errorf("[%.3fms] [%s] %s; error=%v", ms, utils.FileWithLineNum(), sql, err)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		customlogger.Warningf("[%.3fms] [%s] %s; %s, rows=%v", ms, utils.FileWithLineNum(), sql, fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold), rows)
	case l.LogLevel == logger.Info:
		sql, rows := fc()
		customlogger.Debugf("[%.3fms] [%s] %s; rows=%v", ms, utils.FileWithLineNum(), sql, rows)
	}
}
