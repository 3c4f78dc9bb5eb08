package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
)

type StatsRecorder interface {
	Record(ctx context.Context, event domain.AskEvent) error
}

// Stats are best effort, a failing store never fails the ask
func recordOutcome(ctx context.Context, stats StatsRecorder, nowFunc func() time.Time, outcome domain.AskOutcome) {
	recordOutcomeMetric(ctx, outcome)

	err := stats.Record(ctx, domain.AskEvent{Outcome: outcome, At: nowFunc()})
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "failed to record stats", slog.String("outcome", string(outcome)), slog.String("error", err.Error()))
	}
}
