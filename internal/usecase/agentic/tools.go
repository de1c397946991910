package agentic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Tool names exposed to the model.
const (
	toolSearchMeetings    = "search_meetings"
	toolSearchChunks      = "search_transcript_chunks"
	toolSearchWorkflows   = "search_workflows"
	toolGetFullTranscript = "get_full_transcript"
	toolGetMeetingNotes   = "get_meeting_notes"
)

// hits returned per search tool call.
const toolSearchK = 5

const querySchema = `{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}`
const meetingIDSchema = `{"type":"object","properties":{"meeting_id":{"type":"string","description":"Meeting identifier"}},"required":["meeting_id"]}`

func toolDescriptors() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{
			Name:        toolSearchMeetings,
			Description: "Search meeting titles by semantic similarity. Returns meeting ids, titles and scores.",
			Parameters:  querySchema,
		},
		{
			Name:        toolSearchChunks,
			Description: "Search transcript excerpts by semantic similarity. Returns matching excerpts with their meeting ids.",
			Parameters:  querySchema,
		},
		{
			Name:        toolSearchWorkflows,
			Description: "Search workflow summaries extracted from meetings. Returns matching workflows with their meeting ids.",
			Parameters:  querySchema,
		},
		{
			Name:        toolGetFullTranscript,
			Description: "Fetch the full transcript of a meeting by id. Use after a search located the meeting.",
			Parameters:  meetingIDSchema,
		},
		{
			Name:        toolGetMeetingNotes,
			Description: "Fetch the notes of a meeting by id. Use after a search located the meeting.",
			Parameters:  meetingIDSchema,
		},
	}
}

// IndexSearcher runs similarity search over one document type.
type IndexSearcher interface {
	Search(ctx context.Context, docType domain.DocType, query []float32, k int, orgID string) ([]domain.SearchHit, error)
}

// MeetingReader loads meetings and their latest state.
type MeetingReader interface {
	GetMeeting(ctx context.Context, id string) (domain.Meeting, error)
	GetLatestState(ctx context.Context, meetingID string) (domain.MeetingState, error)
}

// executor runs one tool call against the retrieval backends and records
// what it found in the gathered context. Results and errors both come back
// as JSON strings for the model.
type executor struct {
	embedder domain.Embedder
	index    IndexSearcher
	meetings MeetingReader
	orgID    string
	gathered *gatheredContext
	logger   *zap.Logger
}

type toolError struct {
	Error string `json:"error"`
}

func toolErrorf(format string, args ...any) string {
	return mustJSON(toolError{Error: fmt.Sprintf(format, args...)})
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error": "internal: failed to encode tool result"}`
	}
	return string(data)
}

func (e *executor) execute(ctx context.Context, call domain.ToolCall) string {
	var args struct {
		Query     string `json:"query"`
		MeetingID string `json:"meeting_id"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return toolErrorf("invalid tool arguments: %v", err)
	}

	switch call.Name {
	case toolSearchMeetings:
		return e.search(ctx, domain.DocTypeTitle, args.Query)
	case toolSearchChunks:
		return e.search(ctx, domain.DocTypeTranscriptChunk, args.Query)
	case toolSearchWorkflows:
		return e.search(ctx, domain.DocTypeWorkflowSummary, args.Query)
	case toolGetFullTranscript:
		return e.fullTranscript(ctx, args.MeetingID)
	case toolGetMeetingNotes:
		return e.meetingNotes(ctx, args.MeetingID)
	default:
		return toolErrorf("unknown tool: %s", call.Name)
	}
}

type searchResultItem struct {
	MeetingID string  `json:"meeting_id"`
	SourceID  string  `json:"source_id,omitempty"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// search rejects empty queries locally so the model gets corrective
// feedback without burning a provider call.
func (e *executor) search(ctx context.Context, docType domain.DocType, query string) string {
	if strings.TrimSpace(query) == "" {
		return toolErrorf("query must not be empty")
	}

	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("Tool embedding failed", zap.String("doc_type", string(docType)), zap.Error(err))
		return toolErrorf("embedding failed: %v", err)
	}

	hits, err := e.index.Search(ctx, docType, emb.Embedding, toolSearchK, e.orgID)
	if err != nil {
		e.logger.Warn("Tool search failed", zap.String("doc_type", string(docType)), zap.Error(err))
		return toolErrorf("search failed: %v", err)
	}
	e.gathered.addHits(hits)

	items := make([]searchResultItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, searchResultItem{
			MeetingID: hit.Document.MeetingID,
			SourceID:  hit.Document.SourceID,
			Text:      truncate(hit.Document.Text, maxSnippetChars),
			Score:     hit.Score,
		})
	}
	return mustJSON(map[string]any{"results": items, "count": len(items)})
}

func (e *executor) fullTranscript(ctx context.Context, meetingID string) string {
	if strings.TrimSpace(meetingID) == "" {
		return toolErrorf("meeting_id must not be empty")
	}

	meeting, err := e.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		if errors.Is(err, domain.ErrMeetingNotFound) {
			return toolErrorf("meeting %s not found", meetingID)
		}
		return toolErrorf("load meeting failed: %v", err)
	}
	if strings.TrimSpace(meeting.Transcript) == "" {
		return toolErrorf("meeting %s has no transcript", meetingID)
	}

	e.gathered.transcripts[meetingID] = meeting.Transcript
	e.gathered.titles[meetingID] = meeting.Title
	return mustJSON(map[string]any{
		"meeting_id": meetingID,
		"title":      meeting.Title,
		"transcript": truncate(meeting.Transcript, maxTranscriptInPrompt),
	})
}

func (e *executor) meetingNotes(ctx context.Context, meetingID string) string {
	if strings.TrimSpace(meetingID) == "" {
		return toolErrorf("meeting_id must not be empty")
	}

	state, err := e.meetings.GetLatestState(ctx, meetingID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			return toolErrorf("meeting %s has no notes", meetingID)
		}
		return toolErrorf("load notes failed: %v", err)
	}
	if strings.TrimSpace(state.MeetingSummary) == "" {
		return toolErrorf("meeting %s has no notes", meetingID)
	}

	e.gathered.notes[meetingID] = state.MeetingSummary
	return mustJSON(map[string]any{
		"meeting_id": meetingID,
		"notes":      state.MeetingSummary,
	})
}
