package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"factoryops/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// observeGorm swaps the global logger for an observer for one test.
func observeGorm(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	original := log
	t.Cleanup(func() { log = original })

	core, logs := observer.New(zapcore.DebugLevel)
	log = zap.New(core)
	return logs
}

func fieldsOf(e observer.LoggedEntry) map[string]any {
	return e.ContextMap()
}

func traceQuery(ctx context.Context, adapter *GormLoggerAdapter, sql string, err error) {
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return sql, 1 }, err)
}

func TestGormAdapterLevels(t *testing.T) {
	cases := []struct {
		name     string
		level    gormlogger.LogLevel
		messages []string
	}{
		{"silent", gormlogger.Silent, nil},
		{"error", gormlogger.Error, []string{"status update failed"}},
		{"warn", gormlogger.Warn, []string{"pool exhausted", "status update failed"}},
		{"info", gormlogger.Info, []string{"connected", "pool exhausted", "status update failed", "SQL query executed"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := observeGorm(t)
			adapter := NewGormLoggerAdapter(tc.level)

			ctx := context.Background()
			adapter.Info(ctx, "connected")
			adapter.Warn(ctx, "pool %s", "exhausted")
			adapter.Error(ctx, "status update failed")
			traceQuery(ctx, adapter, "SELECT * FROM material_batches", nil)

			var got []string
			for _, e := range logs.All() {
				got = append(got, e.Message)
			}
			assert.Equal(t, tc.messages, got)
		})
	}
}

func TestGormAdapterLogModeKeepsConfig(t *testing.T) {
	observeGorm(t)
	cfg := &GormLoggerConfig{SlowThreshold: time.Second}
	adapter := NewGormLoggerAdapterWithConfig(gormlogger.Warn, cfg)

	switched, ok := adapter.LogMode(gormlogger.Info).(*GormLoggerAdapter)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, switched.logLevel)
	assert.Same(t, cfg, switched.config)
	assert.Equal(t, gormlogger.Warn, adapter.logLevel)
}

func TestGormAdapterMarksTransactionalQueries(t *testing.T) {
	logs := observeGorm(t)
	adapter := NewGormLoggerAdapter(gormlogger.Info)

	ctx := persistence.ContextWithRequestID(context.Background(), "req-42")
	traceQuery(ctx, adapter, "SELECT count(*) FROM production_batches", nil)
	traceQuery(persistence.ContextWithTx(ctx, &gorm.DB{}), adapter, "UPDATE material_batches SET quantity = 300", nil)

	entries := logs.FilterMessage("SQL query executed").All()
	require.Len(t, entries, 2)

	outside := fieldsOf(entries[0])
	assert.Equal(t, "req-42", outside["request_id"])
	assert.NotContains(t, outside, "in_tx")

	inside := fieldsOf(entries[1])
	assert.Equal(t, true, inside["in_tx"])
	assert.Equal(t, "req-42", inside["request_id"])
	assert.Equal(t, "UPDATE material_batches SET quantity = 300", inside["sql"])
}

func TestGormAdapterRecordNotFound(t *testing.T) {
	t.Run("logged at debug when not ignored", func(t *testing.T) {
		logs := observeGorm(t)
		adapter := NewGormLoggerAdapterWithConfig(gormlogger.Error, &GormLoggerConfig{})

		traceQuery(context.Background(), adapter, "SELECT * FROM product_types WHERE id = 'missing'", gormlogger.ErrRecordNotFound)

		require.Equal(t, 1, logs.Len())
		e := logs.All()[0]
		assert.Equal(t, "Database record not found", e.Message)
		assert.Equal(t, zapcore.DebugLevel, e.Level)
		assert.NotContains(t, fieldsOf(e), "error")
	})

	t.Run("dropped by default", func(t *testing.T) {
		logs := observeGorm(t)
		adapter := NewGormLoggerAdapter(gormlogger.Info)

		traceQuery(context.Background(), adapter, "SELECT * FROM product_types WHERE id = 'missing'", gormlogger.ErrRecordNotFound)
		assert.Zero(t, logs.Len())
	})
}

func TestGormAdapterFailuresAndSlowQueries(t *testing.T) {
	logs := observeGorm(t)
	adapter := NewGormLoggerAdapterWithConfig(gormlogger.Warn, &GormLoggerConfig{SlowThreshold: 10 * time.Millisecond})

	traceQuery(context.Background(), adapter, "INSERT INTO preview_tokens", errors.New("duplicate key"))
	adapter.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), func() (string, int64) {
		return "SELECT * FROM mutation_records", 20
	}, nil)
	traceQuery(context.Background(), adapter, "SELECT 1", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "Database operation failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "duplicate key", fieldsOf(entries[0])["error"])

	assert.Equal(t, "Slow SQL query", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "slow_query", fieldsOf(entries[1])["type"])
	assert.EqualValues(t, 20, fieldsOf(entries[1])["rows"])
}
