package askprovider

import (
	"context"
	"net/http"

	"github.com/Amund211/askbox/internal/domain"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Asker answers a single question. Implementations are not required to be safe
// for concurrent use, the client pool hands each one to a single caller at a time.
type Asker interface {
	Ask(ctx context.Context, prompt string, cfg domain.AskConfig) (string, error)
}
