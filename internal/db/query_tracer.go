package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type querySpanContextKey struct{}

type querySpan struct {
	span    *sentry.Span
	started time.Time
}

// queryTracer turns every pgx query into a sentry span when the request is traced.
type queryTracer struct{}

func newQueryTracer() *queryTracer {
	return &queryTracer{}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	query := normalizeQuery(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.sql.query",
		sentry.WithDescription(query),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")
	span.SetData("db.params", len(data.Args))
	if operation, table := describeQuery(query); operation != "" {
		span.SetData("db.operation", operation)
		if table != "" {
			span.SetData("db.sql.table", table)
		}
	}

	return context.WithValue(span.Context(), querySpanContextKey{}, &querySpan{span: span, started: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, _ := ctx.Value(querySpanContextKey{}).(*querySpan)
	if qs == nil {
		return
	}

	switch {
	case data.Err == nil:
		qs.span.Status = sentry.SpanStatusOK
	case errors.Is(data.Err, pgx.ErrNoRows):
		qs.span.Status = sentry.SpanStatusNotFound
	default:
		qs.span.Status = sentry.SpanStatusInternalError
		qs.span.SetData("db.error", data.Err.Error())
	}

	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		qs.span.SetData("db.rows_affected", rows)
	}
	qs.span.SetData("db.duration_ms", time.Since(qs.started).Milliseconds())
	qs.span.Finish()
}

func normalizeQuery(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return "sql.query"
	}
	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

// describeQuery returns the SQL verb and, when it can tell, the main table.
func describeQuery(query string) (string, string) {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return "", ""
	}
	operation := strings.ToUpper(parts[0])

	var marker string
	switch operation {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		return operation, tableName(parts, 1)
	default:
		return operation, ""
	}
	for i, part := range parts {
		if strings.EqualFold(part, marker) {
			return operation, tableName(parts, i+1)
		}
	}
	return operation, ""
}

func tableName(parts []string, idx int) string {
	if idx >= len(parts) {
		return ""
	}
	name := strings.Trim(parts[idx], "\"(),;")
	if strings.HasPrefix(name, "$") {
		return ""
	}
	return strings.ToLower(name)
}
