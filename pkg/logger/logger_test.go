package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestGormLoggerLogMode(t *testing.T) {
	l := NewGormLogger(gormlogger.Warn, 100*time.Millisecond)
	silent := l.LogMode(gormlogger.Silent).(*GormLogger)

	assert.Equal(t, gormlogger.Silent, silent.LogLevel)
	assert.Equal(t, gormlogger.Warn, l.LogLevel)
	assert.Equal(t, 100*time.Millisecond, silent.SlowThreshold)
}

func TestGormLoggerTraceDoesNotPanicBeforeSetup(t *testing.T) {
	l := NewGormLogger(gormlogger.Info, time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	assert.NotPanics(t, func() {
		l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
		l.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
		l.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	})
}
