package ports

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/ratelimiting"
	"github.com/Amund211/askbox/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// NewRecoverMiddleware turns a panic in the handler into a reported 500
func NewRecoverMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				ctx := r.Context()
				logging.FromContext(ctx).ErrorContext(ctx, "recovered panic in handler", "panic", fmt.Sprint(recovered), "stack", string(debug.Stack()))
				reporting.Report(ctx, fmt.Errorf("panic in handler: %v", recovered))

				writeResponse(w, http.StatusInternalServerError, internalErrorResponse)
			}()

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}
