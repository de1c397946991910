package indexer

import (
	"context"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// MeetingReader loads meetings and their latest processing state.
type MeetingReader interface {
	GetMeeting(ctx context.Context, id string) (domain.Meeting, error)
	GetLatestState(ctx context.Context, meetingID string) (domain.MeetingState, error)
}

// IndexStore writes documents into the per-type vector indices.
type IndexStore interface {
	AddDocuments(ctx context.Context, docType domain.DocType, docs []domain.Document, vectors [][]float32) ([]string, error)
	DeleteByMeeting(ctx context.Context, meetingID string) (map[domain.DocType]int, error)
}

// Embedder vectorizes document texts in batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Summarizer produces workflow summaries for indexing.
type Summarizer interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}
