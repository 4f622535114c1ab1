package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storeops/backend/internal/infrastructure/config"
)

// RegisterDBTracing registers the otelgorm plugin on the given GORM DB,
// plus an after-callback that annotates spans with row counts and errors.
// It is a no-op when database tracing is disabled.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger) error {
	if !cfg.DBTraceEnabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName("postgresql"),
	}
	if !cfg.DBLogFullSQL {
		// Keep query parameters out of spans
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	after := func(db *gorm.DB) { annotateSpan(db) }
	if err := db.Callback().Create().After("gorm:create").Register("otel_annotate:create", after); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("otel_annotate:query", after); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("otel_annotate:update", after); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("otel_annotate:delete", after); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("otel_annotate:raw", after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.Bool("log_full_sql", cfg.DBLogFullSQL))
	return nil
}

func annotateSpan(db *gorm.DB) {
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
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
