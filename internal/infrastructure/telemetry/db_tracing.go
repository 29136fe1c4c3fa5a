// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled          bool          // Enable database tracing
	LogFullSQL       bool          // Include full SQL statements in spans (dev only, security risk in prod)
	SlowQueryThresh  time.Duration // Threshold for marking queries as slow (default: 200ms)
	DBSystem         string        // Database system name (default: "postgresql")
	WithoutVariables bool          // Exclude query variables from SQL statement (for security)
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true, // Default to secure mode
	}
}

// DBTracingPlugin wraps otelgorm plugin with custom slow query detection.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm registers the otelgorm plugin with the given GORM DB instance.
// It also registers a custom callback for slow query detection and error marking.
// Returns error if registration fails.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}

	if !p.config.LogFullSQL {
		// Keep query parameters out of spans
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	plugin := otelgorm.NewPlugin(opts...)
	if err := db.Use(plugin); err != nil {
		return err
	}

	if err := p.registerBeforeCallbacks(db); err != nil {
		return err
	}
	// Slow-query marking runs after otelgorm has opened the span
	if err := p.registerSlowQueryCallback(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// registerBeforeCallbacks adds before callbacks to set query start time.
func (p *DBTracingPlugin) registerBeforeCallbacks(db *gorm.DB) error {
	beforeCallback := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}

	if err := db.Callback().Create().Before("gorm:create").Register("otel_timing:before_create", beforeCallback); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("otel_timing:before_query", beforeCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("otel_timing:before_update", beforeCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("otel_timing:before_delete", beforeCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("otel_timing:before_row", beforeCallback); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("otel_timing:before_raw", beforeCallback); err != nil {
		return err
	}

	return nil
}

// registerSlowQueryCallback adds a custom callback to detect slow queries and mark errors.
func (p *DBTracingPlugin) registerSlowQueryCallback(db *gorm.DB) error {
	callbacks := []struct {
		name     string
		callback func(*gorm.DB)
	}{
		{"otel_slow_query:create", p.slowQueryCallback},
		{"otel_slow_query:query", p.slowQueryCallback},
		{"otel_slow_query:update", p.slowQueryCallback},
		{"otel_slow_query:delete", p.slowQueryCallback},
		{"otel_slow_query:row", p.slowQueryCallback},
		{"otel_slow_query:raw", p.slowQueryCallback},
	}

	if err := db.Callback().Create().After("gorm:create").Register(callbacks[0].name, callbacks[0].callback); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(callbacks[1].name, callbacks[1].callback); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register(callbacks[2].name, callbacks[2].callback); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register(callbacks[3].name, callbacks[3].callback); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register(callbacks[4].name, callbacks[4].callback); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register(callbacks[5].name, callbacks[5].callback); err != nil {
		return err
	}

	return nil
}

// slowQueryCallback is called after each database operation to detect slow queries and errors.
func (p *DBTracingPlugin) slowQueryCallback(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// ErrRecordNotFound is an expected outcome, not a failure
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.SetAttributes(attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

// queryStartTimeKey is the context key for storing query start time.
type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"
