package infra

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger 把 GORM 的日志输出接到 Zap 上
type GormZapLogger struct {
	zapLog        *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
	skipNotFound  bool
}

// NewGormZapLogger 创建默认参数的 GORM 日志适配器,
// 慢查询阈值 200ms, 忽略 record not found
func NewGormZapLogger(zapLog *zap.Logger) *GormZapLogger {
	return &GormZapLogger{
		zapLog:        zapLog,
		level:         gormLogger.Warn,
		slowThreshold: 200 * time.Millisecond,
		skipNotFound:  true,
	}
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info 日志
func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		l.zapLog.Sugar().Infof(msg, data...)
	}
}

// Warn 日志
func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.zapLog.Sugar().Warnf(msg, data...)
	}
}

// Error 日志
func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		l.zapLog.Sugar().Errorf(msg, data...)
	}
}

// Trace 记录 SQL 执行, 出错记 Error, 超过慢查询阈值记 Warn
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && !(l.skipNotFound && errors.Is(err, gormLogger.ErrRecordNotFound)):
		l.zapLog.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.zapLog.Warn("SQL 慢查询", fields...)
	case l.level >= gormLogger.Info:
		l.zapLog.Debug("SQL 执行", fields...)
	}
}
