package upstream

import (
	"context"
	"log/slog"
	"time"
)

func logRequest(ctx context.Context, logger *slog.Logger, method, url string) {
	logger.DebugContext(ctx, "upstream request", "method", method, "url", url)
}

func logResponse(ctx context.Context, logger *slog.Logger, status int, d time.Duration, bytes int) {
	level := slog.LevelDebug
	if status >= 400 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "upstream response",
		"status", status, "duration_ms", d.Milliseconds(), "bytes", bytes)
}

func logError(ctx context.Context, logger *slog.Logger, operation string, err error) {
	logger.ErrorContext(ctx, "upstream error", "operation", operation, "error", err)
}

// LogTransform records how many upstream records a parser turned into
// normalized ones.
func LogTransform(ctx context.Context, logger *slog.Logger, kind string, in, out int, d time.Duration) {
	logger.DebugContext(ctx, "transformed records",
		"kind", kind, "in", in, "out", out, "duration_ms", d.Milliseconds())
}

// LogUpsert records a cache write.
func LogUpsert(ctx context.Context, logger *slog.Logger, table string, count int, d time.Duration) {
	logger.InfoContext(ctx, "upserted records",
		"table", table, "count", count, "duration_ms", d.Milliseconds())
}
