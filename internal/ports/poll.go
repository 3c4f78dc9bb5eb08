package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Amund211/askbox/internal/app"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/ratelimiting"
	"github.com/Amund211/askbox/internal/reporting"
	"github.com/Amund211/askbox/internal/token"
)

var errInvalidWait = errors.New("invalid wait")

// parseWait reads the wait query parameter in seconds, clamped to maxWait.
// A missing parameter means no waiting.
func parseWait(raw string, maxWait time.Duration) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidWait, raw)
	}

	if seconds >= maxWait.Seconds() {
		return maxWait, nil
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func MakePollHandler(
	pollAnswer app.PollAnswer,
	maxWait time.Duration,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("poll"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("poll"),
		NewRecoverMiddleware(),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, writeRateLimited),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rawToken := r.PathValue("token")

		if !token.Valid(rawToken) {
			writeResponse(w, http.StatusNotFound, askResponse{Status: statusInvalidToken})
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("token", rawToken))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"token": rawToken})

		wait, err := parseWait(r.URL.Query().Get("wait"), maxWait)
		if err != nil {
			writeResponse(w, http.StatusBadRequest, errorResponse("invalid wait"))
			return
		}

		result, err := pollAnswer(ctx, rawToken, wait)
		if errors.Is(err, domain.ErrInvalidToken) {
			writeResponse(w, http.StatusNotFound, askResponse{Status: statusInvalidToken})
			return
		} else if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to poll answer: %w", err))
			writeResponse(w, http.StatusInternalServerError, internalErrorResponse)
			return
		}

		statusCode, response := pollResponse(result)
		writeResponse(w, statusCode, response)
	}

	return middleware(handler)
}
