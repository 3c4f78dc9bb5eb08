package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BuildEvictionHook reports results dropped from the result cache.
// Runs under the cache lock so it must not block.
func BuildEvictionHook(logger *slog.Logger) func(token string, pending bool) {
	return func(token string, pending bool) {
		metrics.evictions.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("pending", pending)))
		if pending {
			logger.Warn("evicted pending result, its answer will be dropped", slog.String("token", token))
		}
	}
}
