package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Amund211/askbox/internal/adapters/askprovider"
	"github.com/Amund211/askbox/internal/adapters/clientpool"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/reporting"
)

type askerPool interface {
	Lease(ctx context.Context) (*clientpool.Lease[askprovider.Asker], error)
}

type answerWriter interface {
	Reserve() string
	Complete(token string, answer domain.Answer) bool
}

// SubmitQuestion schedules an upstream ask and returns the token to poll for its answer
type SubmitQuestion func(ctx context.Context, question string) (string, error)

func BuildSubmitQuestion(
	pool askerPool,
	answers answerWriter,
	runner *Runner,
	stats StatsRecorder,
	askConfig domain.AskConfig,
	askTimeout time.Duration,
	nowFunc func() time.Time,
) SubmitQuestion {
	return func(ctx context.Context, question string) (string, error) {
		question, err := normalizeQuestion(question)
		if err != nil {
			return "", err
		}

		lease, err := pool.Lease(ctx)
		if errors.Is(err, clientpool.ErrNoCapacity) {
			recordOutcome(ctx, stats, nowFunc, domain.AskOutcomeOverloaded)
			return "", domain.ErrOverloaded
		} else if err != nil {
			err = fmt.Errorf("failed to lease client: %w", err)
			reporting.Report(ctx, err)
			return "", err
		}
		metrics.leasedClients.Add(ctx, 1)

		release := func() {
			lease.Release()
			metrics.leasedClients.Add(context.Background(), -1)
		}

		// Only admitted submissions get a token
		token := answers.Reserve()

		ctx = logging.AddMetaToContext(ctx, slog.String("token", token))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"token": token})

		err = runner.Go(ctx, func(ctx context.Context) {
			defer release()
			ask(ctx, lease.Client(), answers, stats, token, question, askConfig, askTimeout, nowFunc)
		})
		if err != nil {
			release()
			answers.Complete(token, domain.Answer{Failure: "service is shutting down"})
			logging.FromContext(ctx).WarnContext(ctx, "could not schedule ask", slog.String("error", err.Error()))
			return "", fmt.Errorf("%w: %w", domain.ErrOverloaded, err)
		}

		recordOutcome(ctx, stats, nowFunc, domain.AskOutcomeAccepted)

		return token, nil
	}
}

func normalizeQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.DefaultQuestion, nil
	}
	if !utf8.ValidString(question) || utf8.RuneCountInString(question) > domain.MaxQuestionLength {
		return "", domain.ErrInvalidQuestion
	}
	return question, nil
}

func ask(
	ctx context.Context,
	asker askprovider.Asker,
	answers answerWriter,
	stats StatsRecorder,
	token string,
	question string,
	askConfig domain.AskConfig,
	askTimeout time.Duration,
	nowFunc func() time.Time,
) {
	logger := logging.FromContext(ctx)

	askCtx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	start := nowFunc()
	text, err := asker.Ask(askCtx, question, askConfig)
	metrics.askDuration.Record(ctx, nowFunc().Sub(start).Seconds())

	answer := domain.Answer{Text: text}
	outcome := domain.AskOutcomeCompleted
	if err != nil {
		answer = domain.Answer{Failure: failureMessage(err)}
		outcome = domain.AskOutcomeFailed

		if errors.Is(err, domain.ErrTemporarilyUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			logger.WarnContext(ctx, "upstream ask failed", slog.String("error", err.Error()))
		} else {
			reporting.Report(ctx, fmt.Errorf("upstream ask failed: %w", err))
		}
	}

	if !answers.Complete(token, answer) {
		// The token was evicted while the ask was running. Nobody can read the answer anymore.
		logger.WarnContext(ctx, "answer dropped, token no longer in cache", slog.String("outcome", string(outcome)))
		outcome = domain.AskOutcomeDropped
	} else {
		logger.InfoContext(ctx, "ask finished", slog.String("outcome", string(outcome)), slog.String("duration", nowFunc().Sub(start).String()))
	}

	recordOutcome(ctx, stats, nowFunc, outcome)
}

// The message pollers see for a failed ask
func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "upstream error: timed out waiting for an answer"
	}

	var upstreamErr *domain.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Error()
	}

	return "internal error"
}
