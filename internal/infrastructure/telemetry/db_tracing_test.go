package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// tracedModel is a simple model for exercising traced database operations
type tracedModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100"`
	CreatedAt time.Time
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&tracedModel{})
	require.NoError(t, err)

	return db
}

func setupTracerWithExporter(t *testing.T) (*trace.TracerProvider, *tracetest.SpanRecorder) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(spanRecorder))
	return tp, spanRecorder
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
	assert.True(t, cfg.WithoutVariables)
}

func TestDBTracingPlugin_RegisterOtelGorm_Disabled(t *testing.T) {
	db := setupTestDB(t)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = false

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	err := plugin.RegisterOtelGorm(db)

	assert.NoError(t, err)
}

func TestDBTracingPlugin_RegisterOtelGorm_Enabled(t *testing.T) {
	db := setupTestDB(t)

	cfg := DBTracingConfig{
		Enabled:          true,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: true,
	}

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	err := plugin.RegisterOtelGorm(db)

	assert.NoError(t, err)
}

func TestDBTracingPlugin_RegisterOtelGorm_DoubleRegistration(t *testing.T) {
	db := setupTestDB(t)

	cfg := DBTracingConfig{
		Enabled:          true,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: true,
	}

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	err := plugin.RegisterOtelGorm(db)
	assert.NoError(t, err)

	// Re-registering collides on plugin/callback names
	err = plugin.RegisterOtelGorm(db)
	assert.Error(t, err)
}

func TestDBTracingPlugin_TracedOperations(t *testing.T) {
	db := setupTestDB(t)
	tp, spanRecorder := setupTracerWithExporter(t)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := DBTracingConfig{
		Enabled:          true,
		LogFullSQL:       true,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: false,
	}

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	tracer := tp.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "traced-operations")

	db = db.WithContext(ctx)
	result := db.Create(&tracedModel{Name: "traced"})
	require.NoError(t, result.Error)

	var found tracedModel
	result = db.First(&found, "name = ?", "traced")
	require.NoError(t, result.Error)
	assert.Equal(t, "traced", found.Name)

	span.End()

	spans := spanRecorder.Ended()
	assert.NotEmpty(t, spans)
}

func TestSlowQueryCallback_NonRecordingSpan(t *testing.T) {
	db := setupTestDB(t)

	cfg := DBTracingConfig{
		Enabled:          true,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: true,
	}

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	db = db.WithContext(context.Background())

	// Must not panic without a recording span
	plugin.slowQueryCallback(db)
}

func TestSlowQueryCallback_NilContext(t *testing.T) {
	cfg := DBTracingConfig{
		Enabled:          true,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: true,
	}

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	db := setupTestDB(t)

	// Must not panic when the statement carries no context
	plugin.slowQueryCallback(db)
}

func TestDBTracingConfig_SecurityDefaults(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.LogFullSQL, "LogFullSQL should be disabled by default")
	assert.True(t, cfg.WithoutVariables, "WithoutVariables should be true by default")
}
