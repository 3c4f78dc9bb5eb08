package askprovider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Amund211/askbox/internal/adapters/clientpool"
	"github.com/Amund211/askbox/internal/config"
	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/ratelimiting"
)

const mockDelay = 2 * time.Second

// NewHTTPClient builds the client used by a single pooled asker
func NewHTTPClient(timeout time.Duration) HttpClient {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewFactory returns the pool factory for askers
//
// The API key is resolved on every build so a rotated key file is picked up by
// new handles. Development without a key gets mocked askers.
func NewFactory(
	conf config.Config,
	httpClientFactory func(timeout time.Duration) HttpClient,
	limiter *ratelimiting.WindowLimiter,
) clientpool.Factory[Asker] {
	requestTimeout := conf.AskTimeout()
	development := conf.IsDevelopment()
	apiKey := conf.OpenAIAPIKey()
	apiKeyFile := conf.OpenAIAPIKeyFile()

	return func(ctx context.Context) (Asker, error) {
		key, err := resolveAPIKey(apiKey, apiKeyFile)
		if err != nil {
			return nil, err
		}

		if key == "" {
			if development {
				return newMockAsker(mockDelay, time.After), nil
			}
			return nil, fmt.Errorf("%w: no OpenAI API key configured", domain.ErrMissingCredentials)
		}

		return NewOpenAI(httpClientFactory(requestTimeout), key, limiter, requestTimeout), nil
	}
}

func resolveAPIKey(apiKey string, apiKeyFile string) (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	if apiKeyFile == "" {
		return "", nil
	}

	data, err := os.ReadFile(apiKeyFile)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read API key file: %w", domain.ErrMissingCredentials, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: API key file %s is empty", domain.ErrMissingCredentials, apiKeyFile)
	}
	return key, nil
}
