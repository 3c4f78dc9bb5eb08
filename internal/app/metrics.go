package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Amund211/askbox/internal/domain"
)

type appMetricsCollection struct {
	askOutcomes   metric.Int64Counter
	leasedClients metric.Int64UpDownCounter
	askDuration   metric.Float64Histogram
	evictions     metric.Int64Counter
}

var metrics appMetricsCollection

func init() {
	const name = "askbox/app"
	meter := otel.Meter(name)

	askOutcomes, err := meter.Int64Counter(
		"app/ask_outcomes",
		metric.WithDescription("Submissions and their outcomes"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ask outcomes metric: %w", err))
	}

	leasedClients, err := meter.Int64UpDownCounter(
		"app/leased_clients",
		metric.WithDescription("Clients currently leased for an upstream call"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create leased clients metric: %w", err))
	}

	askDuration, err := meter.Float64Histogram(
		"app/ask_duration_seconds",
		metric.WithDescription("Time spent waiting for the upstream answer"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ask duration metric: %w", err))
	}

	evictions, err := meter.Int64Counter(
		"app/cache_evictions",
		metric.WithDescription("Results evicted from the result cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache evictions metric: %w", err))
	}

	metrics = appMetricsCollection{
		askOutcomes:   askOutcomes,
		leasedClients: leasedClients,
		askDuration:   askDuration,
		evictions:     evictions,
	}
}

func recordOutcomeMetric(ctx context.Context, outcome domain.AskOutcome) {
	metrics.askOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}
