// internal/retrieval/provider.go
package retrieval

import (
	"context"
	"time"

	"query-orchestrator/internal/models"
)

// Provider is one evidence source. Search returns zero or more facts for
// a classified query; the coordinator bounds each call with the provider's
// timeout inside the global retrieval deadline.
type Provider interface {
	ID() string
	Timeout() time.Duration
	Search(ctx context.Context, queryText string, category models.Category, entities map[string]string) ([]models.ProviderResult, error)
}
