package askprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/logging"
	"github.com/Amund211/askbox/internal/ratelimiting"
)

const responsesURL = "https://api.openai.com/v1/responses"

const userAgent = "askbox/1.0 (+https://github.com/Amund211/askbox)"

// Longest error body we keep in a stored failure, in runes
const maxErrorMessageLength = 500

// Answers are a few words, anything near this is not a response we can use
const maxResponseBodySize = 1 << 20

type OpenAI struct {
	httpClient     HttpClient
	apiKey         string
	url            string
	limiter        *ratelimiting.WindowLimiter
	maxRequestTime time.Duration
}

func NewOpenAI(httpClient HttpClient, apiKey string, limiter *ratelimiting.WindowLimiter, maxRequestTime time.Duration) *OpenAI {
	return &OpenAI{
		httpClient:     httpClient,
		apiKey:         apiKey,
		url:            responsesURL,
		limiter:        limiter,
		maxRequestTime: maxRequestTime,
	}
}

type responsesRequest struct {
	Model        string        `json:"model"`
	Instructions string        `json:"instructions,omitempty"`
	Input        string        `json:"input"`
	Text         *textSettings `json:"text,omitempty"`
}

type textSettings struct {
	Verbosity domain.Verbosity `json:"verbosity,omitempty"`
}

type responsesResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *apiError `json:"error"`
}

type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (o *OpenAI) Ask(ctx context.Context, prompt string, cfg domain.AskConfig) (string, error) {
	logger := logging.FromContext(ctx)

	body := responsesRequest{
		Model:        cfg.Model,
		Instructions: cfg.Instructions,
		Input:        prompt,
	}
	if cfg.Verbosity != "" {
		body.Text = &textSettings{Verbosity: cfg.Verbosity}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", domain.NewUpstreamError(-1, "failed to encode request", err)
	}

	var (
		statusCode int
		data       []byte
		requestErr error
	)
	ran := o.limiter.Limit(ctx, o.maxRequestTime, func() {
		statusCode, data, requestErr = o.send(ctx, payload)
	})
	if !ran {
		cause := domain.ErrTemporarilyUnavailable
		if ctxErr := context.Cause(ctx); ctxErr != nil {
			cause = fmt.Errorf("%w: %w", domain.ErrTemporarilyUnavailable, ctxErr)
		}
		return "", domain.NewUpstreamError(-1, "request budget exhausted", cause)
	}
	if requestErr != nil {
		return "", requestErr
	}

	answer, err := answerFromResponse(statusCode, data)
	if err != nil {
		logger.WarnContext(ctx, "upstream request failed", slog.Int("status", statusCode), slog.String("error", err.Error()))
		return "", err
	}

	return answer, nil
}

func (o *OpenAI) send(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return -1, nil, domain.NewUpstreamError(-1, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return -1, nil, domain.NewUpstreamError(-1, "failed to send request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return -1, nil, domain.NewUpstreamError(resp.StatusCode, "failed to read response body", err)
	}
	if len(data) > maxResponseBodySize {
		return -1, nil, domain.NewUpstreamError(resp.StatusCode, "response body too large", nil)
	}

	logging.FromContext(ctx).InfoContext(ctx, "upstream request completed", slog.Int("status", resp.StatusCode), slog.String("duration", time.Since(start).String()))

	return resp.StatusCode, data, nil
}

func answerFromResponse(statusCode int, data []byte) (string, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return "", domain.NewUpstreamError(statusCode, errorMessage(statusCode, data), domain.ErrTemporarilyUnavailable)
	}

	if statusCode != http.StatusOK {
		return "", domain.NewUpstreamError(statusCode, errorMessage(statusCode, data), nil)
	}

	var response responsesResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", domain.NewUpstreamError(statusCode, "failed to parse response", err)
	}

	if response.Error != nil && response.Error.Message != "" {
		return "", domain.NewUpstreamError(statusCode, response.Error.Message, nil)
	}

	var text strings.Builder
	for _, output := range response.Output {
		if output.Type != "message" {
			continue
		}
		for _, content := range output.Content {
			if content.Type == "output_text" {
				text.WriteString(content.Text)
			}
		}
	}

	answer := strings.TrimSpace(text.String())
	if answer == "" {
		return "", domain.NewUpstreamError(statusCode, fmt.Sprintf("response contained no text (status %q)", response.Status), nil)
	}

	return answer, nil
}

func errorMessage(statusCode int, data []byte) string {
	var response errorResponse
	if err := json.Unmarshal(data, &response); err == nil && response.Error != nil && response.Error.Message != "" {
		return response.Error.Message
	}

	message := strings.TrimSpace(string(data))
	if message == "" {
		return http.StatusText(statusCode)
	}
	return truncateRunes(message, maxErrorMessageLength)
}

func truncateRunes(s string, maxRunes int) string {
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}
	return s
}

// Type assertion
var _ Asker = (*OpenAI)(nil)
