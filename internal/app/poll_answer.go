package app

import (
	"context"
	"time"

	"github.com/Amund211/askbox/internal/adapters/cache"
	"github.com/Amund211/askbox/internal/domain"
)

type answerReader interface {
	Get(token string) cache.Lookup[domain.Answer]
	WaitHandle(token string) (<-chan struct{}, bool)
}

// PollAnswer returns the answer for token, waiting up to `wait` for a pending one
type PollAnswer func(ctx context.Context, token string, wait time.Duration) (domain.PollResult, error)

func BuildPollAnswer(answers answerReader, afterFunc func(time.Duration) <-chan time.Time) PollAnswer {
	return func(ctx context.Context, token string, wait time.Duration) (domain.PollResult, error) {
		lookup := answers.Get(token)
		if lookup.State != cache.StatePending || wait <= 0 {
			return pollResultFromLookup(lookup)
		}

		settled, ok := answers.WaitHandle(token)
		if ok {
			select {
			case <-settled:
			case <-afterFunc(wait):
			case <-ctx.Done():
			}
		}

		return pollResultFromLookup(answers.Get(token))
	}
}

func pollResultFromLookup(lookup cache.Lookup[domain.Answer]) (domain.PollResult, error) {
	switch lookup.State {
	case cache.StatePending:
		return domain.PollResult{Status: domain.PollStatusPending}, nil
	case cache.StateComplete:
		if lookup.Value.Failed() {
			return domain.PollResult{Status: domain.PollStatusError, Answer: lookup.Value}, nil
		}
		return domain.PollResult{Status: domain.PollStatusOK, Answer: lookup.Value}, nil
	default:
		return domain.PollResult{}, domain.ErrInvalidToken
	}
}
