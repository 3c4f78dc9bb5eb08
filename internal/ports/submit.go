package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Amund211/askbox/internal/app"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/ratelimiting"
	"github.com/Amund211/askbox/internal/reporting"
)

// Plenty for a question of domain.MaxQuestionLength runes plus JSON overhead
const maxSubmitBodySize = 16 * 1024

type submitRequest struct {
	Question string `json:"question"`
}

func MakeSubmitHandler(
	submitQuestion app.SubmitQuestion,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	// Every accepted submission costs an upstream call, so limit harder than polls
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(1),
		ratelimiting.BurstSize(30),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(0.5),
		ratelimiting.BurstSize(20),
	)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("submit"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("submit"),
		NewRecoverMiddleware(),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, writeRateLimited),
		NewRateLimitMiddleware(userIDRateLimiter, writeRateLimited),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if userID := r.Header.Get("X-User-Id"); userID != "" {
			ctx = reporting.SetUserIDInContext(ctx, userID)
		}

		question, err := readQuestion(w, r)
		if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "invalid submit body", slog.String("error", err.Error()))
			writeResponse(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}

		token, err := submitQuestion(ctx, question)
		if errors.Is(err, domain.ErrOverloaded) {
			writeResponse(w, http.StatusServiceUnavailable, askResponse{Status: statusOverloaded})
			return
		} else if errors.Is(err, domain.ErrInvalidQuestion) {
			writeResponse(w, http.StatusBadRequest, errorResponse("invalid question"))
			return
		} else if err != nil {
			// NOTE: SubmitQuestion reports its own unexpected errors
			writeResponse(w, http.StatusInternalServerError, internalErrorResponse)
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "question submitted", slog.String("token", token))
		writeResponse(w, http.StatusOK, askResponse{Status: statusOK, Token: token})
	}

	return middleware(handler)
}

// An empty body asks the default question
func readQuestion(w http.ResponseWriter, r *http.Request) (string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	var request submitRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return "", fmt.Errorf("failed to parse body: %w", err)
	}
	return request.Question, nil
}
