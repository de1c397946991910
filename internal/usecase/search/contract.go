package search

import (
	"context"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Request carries one search invocation.
type Request struct {
	Query   string
	OrgID   string
	TopK    int
	History []domain.ChatMessage
}

// Strategy is a pluggable retrieval pipeline. Search reports failures as
// data in the result, not as Go errors; an unsuccessful result carries the
// reason in Error.
type Strategy interface {
	Name() string
	Description() string
	Search(ctx context.Context, req Request) domain.SearchResult
}

// StatsReader exposes index statistics.
type StatsReader interface {
	Stats(ctx context.Context) (map[domain.DocType]domain.IndexStats, error)
}
