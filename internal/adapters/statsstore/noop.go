package statsstore

import (
	"context"

	"github.com/Amund211/askbox/internal/domain"
)

// NoopStatsStore is used when no redis is configured
type NoopStatsStore struct{}

func (NoopStatsStore) Record(ctx context.Context, event domain.AskEvent) error {
	return nil
}
