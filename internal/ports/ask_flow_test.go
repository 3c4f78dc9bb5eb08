package ports_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Amund211/askbox/internal/adapters/askprovider"
	"github.com/Amund211/askbox/internal/adapters/cache"
	"github.com/Amund211/askbox/internal/adapters/clientpool"
	"github.com/Amund211/askbox/internal/adapters/statsstore"
	"github.com/Amund211/askbox/internal/app"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/ports"
	"github.com/stretchr/testify/require"
)

// gatedAsker answers once the test closes proceed
type gatedAsker struct {
	proceed chan struct{}
}

func (a *gatedAsker) Ask(ctx context.Context, prompt string, cfg domain.AskConfig) (string, error) {
	select {
	case <-a.proceed:
		return "Tom Hanks", nil
	case <-ctx.Done():
		return "", domain.NewUpstreamError(-1, "failed to send request", ctx.Err())
	}
}

func TestAskFlow(t *testing.T) {
	t.Parallel()

	asker := &gatedAsker{proceed: make(chan struct{})}
	pool, err := clientpool.New(1, func(ctx context.Context) (askprovider.Asker, error) {
		return asker, nil
	})
	require.NoError(t, err)

	answers, err := cache.NewResultCache[domain.Answer](16)
	require.NoError(t, err)

	runner := app.NewRunner()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	askConfig := domain.AskConfig{Model: "test-model", Instructions: domain.DefaultInstructions}
	submitQuestion := app.BuildSubmitQuestion(pool, answers, runner, statsstore.NoopStatsStore{}, askConfig, time.Minute, time.Now)
	pollAnswer := app.BuildPollAnswer(answers, time.After)

	allowedOrigins, err := ports.NewDomainSuffixes("askbox.dev")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ask", ports.MakeSubmitHandler(submitQuestion, allowedOrigins, testLogger, noopMiddleware))
	mux.HandleFunc("GET /v1/ask/{token}", ports.MakePollHandler(pollAnswer, 10*time.Second, allowedOrigins, testLogger, noopMiddleware))

	do := func(method string, target string) (int, map[string]string) {
		t.Helper()

		req := httptest.NewRequest(method, target, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	statusCode, body := do(http.MethodPost, "/v1/ask")
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, "ok", body["status"])
	token := body["token"]
	require.Regexp(t, `^t-[a-z0-9]{24}$`, token)

	// The only client is busy with the first question
	statusCode, body = do(http.MethodPost, "/v1/ask")
	require.Equal(t, http.StatusServiceUnavailable, statusCode)
	require.Equal(t, map[string]string{"status": "overloaded"}, body)

	statusCode, body = do(http.MethodGet, "/v1/ask/"+token)
	require.Equal(t, http.StatusAccepted, statusCode)
	require.Equal(t, map[string]string{"status": "pending"}, body)

	statusCode, body = do(http.MethodGet, "/v1/ask/t-aaaaaaaaaaaaaaaaaaaaaaaa")
	require.Equal(t, http.StatusNotFound, statusCode)
	require.Equal(t, map[string]string{"status": "invalid_token"}, body)

	statusCode, body = do(http.MethodGet, "/v1/ask/not-a-token")
	require.Equal(t, http.StatusNotFound, statusCode)
	require.Equal(t, map[string]string{"status": "invalid_token"}, body)

	close(asker.proceed)

	statusCode, body = do(http.MethodGet, "/v1/ask/"+token+"?wait=5")
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, map[string]string{"status": "ok", "answer": "Tom Hanks"}, body)

	// Reading does not consume the answer
	statusCode, body = do(http.MethodGet, "/v1/ask/"+token)
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, map[string]string{"status": "ok", "answer": "Tom Hanks"}, body)

	// The client is returned once the ask finishes
	require.Eventually(t, func() bool {
		return pool.Stats().Leased == 0
	}, time.Second, time.Millisecond)

	statusCode, body = do(http.MethodPost, "/v1/ask")
	require.Equal(t, http.StatusOK, statusCode)
	require.Equal(t, "ok", body["status"])
	require.NotEqual(t, token, body["token"])
}
