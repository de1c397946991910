package health

import (
	"context"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Pinger checks a storage component's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexReader reports the index store's per-type statistics. A failing read
// doubles as the store's availability signal.
type IndexReader interface {
	Stats(ctx context.Context) (map[domain.DocType]domain.IndexStats, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
