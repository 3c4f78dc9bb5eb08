package askprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Amund211/askbox/internal/domain"
	"github.com/Amund211/askbox/internal/ratelimiting"
	"github.com/stretchr/testify/require"
)

func TestAnswerFromResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		data          string
		expected      string
		temporary     bool
		failure       bool
		failureStatus int
		message       string
	}{
		{
			name:       "message with reasoning",
			statusCode: 200,
			data: `{
  "id": "resp_123",
  "status": "completed",
  "output": [
    {"type": "reasoning", "summary": []},
    {"type": "message", "role": "assistant", "content": [
      {"type": "output_text", "text": "Tom Hanks", "annotations": []}
    ]}
  ]
}`,
			expected: "Tom Hanks",
		},
		{
			name:       "multiple text parts are joined and trimmed",
			statusCode: 200,
			data:       `{"output":[{"type":"message","content":[{"type":"output_text","text":" Meryl "},{"type":"output_text","text":"Streep\n"}]}]}`,
			expected:   "Meryl Streep",
		},
		{
			name:          "no text",
			statusCode:    200,
			data:          `{"status":"incomplete","output":[{"type":"reasoning"}]}`,
			failure:       true,
			failureStatus: 200,
		},
		{
			name:          "invalid json",
			statusCode:    200,
			data:          `{"output":`,
			failure:       true,
			failureStatus: 200,
			message:       "failed to parse response",
		},
		{
			name:          "error in body",
			statusCode:    200,
			data:          `{"error":{"message":"model overloaded","type":"server_error"},"output":[]}`,
			failure:       true,
			failureStatus: 200,
			message:       "model overloaded",
		},
		{
			name:          "rate limited",
			statusCode:    429,
			data:          `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			failure:       true,
			failureStatus: 429,
			temporary:     true,
			message:       "Rate limit reached",
		},
		{
			name:          "unavailable no body",
			statusCode:    503,
			data:          ``,
			failure:       true,
			failureStatus: 503,
			temporary:     true,
			message:       "Service Unavailable",
		},
		{
			name:          "gateway timeout",
			statusCode:    504,
			data:          `upstream timed out`,
			failure:       true,
			failureStatus: 504,
			temporary:     true,
			message:       "upstream timed out",
		},
		{
			name:          "bad request",
			statusCode:    400,
			data:          `{"error":{"message":"Unsupported parameter: 'text.verbosity'","type":"invalid_request_error"}}`,
			failure:       true,
			failureStatus: 400,
			message:       "Unsupported parameter: 'text.verbosity'",
		},
		{
			name:          "unauthorized",
			statusCode:    401,
			data:          `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			failure:       true,
			failureStatus: 401,
			message:       "Incorrect API key provided",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			answer, err := answerFromResponse(tc.statusCode, []byte(tc.data))
			if !tc.failure {
				require.NoError(t, err)
				require.Equal(t, tc.expected, answer)
				return
			}

			require.Error(t, err)
			require.Empty(t, answer)

			var upstreamErr *domain.UpstreamError
			require.ErrorAs(t, err, &upstreamErr)
			require.Equal(t, tc.failureStatus, upstreamErr.StatusCode)
			if tc.message != "" {
				require.Equal(t, tc.message, upstreamErr.Message)
			}
			require.Equal(t, tc.temporary, errors.Is(err, domain.ErrTemporarilyUnavailable))
		})
	}
}

func TestErrorMessageIsTruncated(t *testing.T) {
	t.Parallel()

	t.Run("ascii", func(t *testing.T) {
		t.Parallel()

		message := errorMessage(500, []byte(strings.Repeat("x", 2*maxErrorMessageLength)))
		require.Len(t, message, maxErrorMessageLength)
	})

	t.Run("multi-byte runes are kept whole", func(t *testing.T) {
		t.Parallel()

		message := errorMessage(500, []byte("x"+strings.Repeat("ø", maxErrorMessageLength)))
		require.True(t, utf8.ValidString(message))
		require.Equal(t, maxErrorMessageLength, utf8.RuneCountInString(message))
		require.Equal(t, "x"+strings.Repeat("ø", maxErrorMessageLength-1), message)
	})

	t.Run("short messages are untouched", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "bad gateway ø", errorMessage(502, []byte("bad gateway ø")))
	})
}

type mockedHttpClient struct {
	t          *testing.T
	statusCode int
	body       string
	err        error
	requests   []*http.Request
	payloads   []responsesRequest
}

func (m *mockedHttpClient) Do(req *http.Request) (*http.Response, error) {
	m.t.Helper()
	m.requests = append(m.requests, req)

	data, err := io.ReadAll(req.Body)
	require.NoError(m.t, err)
	var payload responsesRequest
	require.NoError(m.t, json.Unmarshal(data, &payload))
	m.payloads = append(m.payloads, payload)

	if m.err != nil {
		return nil, m.err
	}

	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func newUnlimited() *ratelimiting.WindowLimiter {
	return ratelimiting.NewWindowLimiter(100, time.Minute, time.Now, time.After)
}

func TestOpenAIAsk(t *testing.T) {
	t.Parallel()

	cfg := domain.AskConfig{
		Model:        "gpt-5-mini",
		Instructions: domain.DefaultInstructions,
		Verbosity:    domain.VerbosityLow,
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:          t,
			statusCode: 200,
			body:       `{"output":[{"type":"message","content":[{"type":"output_text","text":"Keanu Reeves"}]}]}`,
		}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		answer, err := openai.Ask(t.Context(), "Name an actor", cfg)
		require.NoError(t, err)
		require.Equal(t, "Keanu Reeves", answer)

		require.Len(t, client.requests, 1)
		req := client.requests[0]
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, responsesURL, req.URL.String())
		require.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.Equal(t, userAgent, req.Header.Get("User-Agent"))

		require.Equal(t, responsesRequest{
			Model:        "gpt-5-mini",
			Instructions: domain.DefaultInstructions,
			Input:        "Name an actor",
			Text:         &textSettings{Verbosity: domain.VerbosityLow},
		}, client.payloads[0])
	})

	t.Run("verbosity omitted when unset", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:          t,
			statusCode: 200,
			body:       `{"output":[{"type":"message","content":[{"type":"output_text","text":"ok"}]}]}`,
		}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		_, err := openai.Ask(t.Context(), "q", domain.AskConfig{Model: "m"})
		require.NoError(t, err)
		require.Nil(t, client.payloads[0].Text)
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:   t,
			err: errors.New("connection refused"),
		}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		_, err := openai.Ask(t.Context(), "q", cfg)
		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, -1, upstreamErr.StatusCode)
		require.Equal(t, "failed to send request", upstreamErr.Message)
		require.EqualError(t, errors.Unwrap(upstreamErr), "connection refused")
	})

	t.Run("oversized response body", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:          t,
			statusCode: 200,
			body:       strings.Repeat("x", maxResponseBodySize+10),
		}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		_, err := openai.Ask(t.Context(), "q", cfg)
		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		require.Equal(t, "response body too large", upstreamErr.Message)
	})

	t.Run("upstream failure", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:          t,
			statusCode: 429,
			body:       `{"error":{"message":"slow down"}}`,
		}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		_, err := openai.Ask(t.Context(), "q", cfg)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		require.ErrorContains(t, err, "slow down")
	})

	t.Run("cancelled before the request budget allows a call", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{t: t, statusCode: 200}
		openai := NewOpenAI(client, "sk-test", newUnlimited(), 10*time.Second)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := openai.Ask(ctx, "q", cfg)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		require.Empty(t, client.requests)
	})
}
