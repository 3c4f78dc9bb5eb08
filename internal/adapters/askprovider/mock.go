package askprovider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/askbox/internal/domain"
)

// mockAsker answers without calling out, for local development
type mockAsker struct {
	delay     time.Duration
	afterFunc func(time.Duration) <-chan time.Time
}

func newMockAsker(delay time.Duration, afterFunc func(time.Duration) <-chan time.Time) *mockAsker {
	return &mockAsker{delay: delay, afterFunc: afterFunc}
}

func (m *mockAsker) Ask(ctx context.Context, prompt string, cfg domain.AskConfig) (string, error) {
	select {
	case <-ctx.Done():
		return "", domain.NewUpstreamError(-1, "request cancelled", context.Cause(ctx))
	case <-m.afterFunc(m.delay):
	}

	// Lets the failure path be exercised by hand
	if strings.Contains(strings.ToLower(prompt), "fail") {
		return "", domain.NewUpstreamError(500, "mocked failure", nil)
	}

	return fmt.Sprintf("mocked answer (%d chars)", len(prompt)), nil
}

var _ Asker = (*mockAsker)(nil)
