// Package indexer turns meetings into embedded documents across the
// per-type vector indices.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Result reports what one indexing run produced.
type Result struct {
	TitleIndexed     bool `json:"title_indexed"`
	ChunksIndexed    int  `json:"chunks_indexed"`
	WorkflowsIndexed int  `json:"workflows_indexed"`
	NotesIndexed     bool `json:"notes_indexed"`
}

// Service orchestrates meeting indexing.
type Service struct {
	meetings          MeetingReader
	store             IndexStore
	embedder          Embedder
	llm               Summarizer
	sentencesPerChunk int
	logger            *zap.Logger
}

// NewService creates an indexing service.
func NewService(
	meetings MeetingReader,
	store IndexStore,
	embedder Embedder,
	llm Summarizer,
	sentencesPerChunk int,
	logger *zap.Logger,
) *Service {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 10
	}
	return &Service{
		meetings:          meetings,
		store:             store,
		embedder:          embedder,
		llm:               llm,
		sentencesPerChunk: sentencesPerChunk,
		logger:            logger,
	}
}

// IndexMeeting indexes a meeting's title, transcript chunks and workflow
// summaries. Existing documents for the meeting are left alone; use
// ReindexMeeting for a clean rebuild.
func (s *Service) IndexMeeting(ctx context.Context, meetingID string) (Result, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Result{}, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	state, err := s.latestState(ctx, meetingID)
	if err != nil {
		return Result{}, err
	}
	return s.index(ctx, meeting, state, "")
}

// IndexNotes removes all documents for the meeting and reindexes it from
// scratch together with the provided notes. A full rerun keeps the indices
// consistent when notes arrive after transcript edits.
func (s *Service) IndexNotes(ctx context.Context, meetingID, notes string) (Result, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Result{}, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	state, err := s.latestState(ctx, meetingID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.store.DeleteByMeeting(ctx, meetingID); err != nil {
		return Result{}, fmt.Errorf("delete documents for %s: %w", meetingID, err)
	}
	return s.index(ctx, meeting, state, notes)
}

// ReindexMeeting removes all documents for the meeting and indexes it again.
// Notes are restored from the latest state's meeting summary when present.
func (s *Service) ReindexMeeting(ctx context.Context, meetingID string) (Result, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Result{}, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	state, err := s.latestState(ctx, meetingID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.store.DeleteByMeeting(ctx, meetingID); err != nil {
		return Result{}, fmt.Errorf("delete documents for %s: %w", meetingID, err)
	}
	return s.index(ctx, meeting, state, state.MeetingSummary)
}

// latestState loads the newest meeting state; a missing state is not an
// error, the meeting simply has no workflows yet.
func (s *Service) latestState(ctx context.Context, meetingID string) (domain.MeetingState, error) {
	state, err := s.meetings.GetLatestState(ctx, meetingID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			return domain.MeetingState{}, nil
		}
		return domain.MeetingState{}, fmt.Errorf("load state for %s: %w", meetingID, err)
	}
	return state, nil
}

func (s *Service) index(
	ctx context.Context, meeting domain.Meeting,
	state domain.MeetingState, notes string,
) (Result, error) {
	var result Result

	if strings.TrimSpace(meeting.Title) != "" {
		doc := domain.Document{
			ID:        "title-" + meeting.ID,
			OrgID:     meeting.OrgID,
			MeetingID: meeting.ID,
			Text:      meeting.Title,
		}
		n, err := s.addDocuments(ctx, domain.DocTypeTitle, []domain.Document{doc})
		if err != nil {
			return result, err
		}
		result.TitleIndexed = n > 0
	}

	chunks := ChunkTranscript(meeting.Transcript, s.sentencesPerChunk)
	if len(chunks) > 0 {
		docs := make([]domain.Document, len(chunks))
		for i, chunk := range chunks {
			docs[i] = domain.Document{
				ID:        fmt.Sprintf("chunk-%s-%d", meeting.ID, i),
				OrgID:     meeting.OrgID,
				MeetingID: meeting.ID,
				Text:      chunk,
				SourceID:  fmt.Sprintf("%d", i),
			}
		}
		n, err := s.addDocuments(ctx, domain.DocTypeTranscriptChunk, docs)
		if err != nil {
			return result, err
		}
		result.ChunksIndexed = n
	}

	if len(state.Workflows) > 0 {
		docs := make([]domain.Document, 0, len(state.Workflows))
		for _, wf := range state.Workflows {
			docs = append(docs, domain.Document{
				ID:        "workflow-" + wf.ID,
				OrgID:     meeting.OrgID,
				MeetingID: meeting.ID,
				Text:      s.summarizeWorkflow(ctx, wf),
				SourceID:  wf.ID,
			})
		}
		n, err := s.addDocuments(ctx, domain.DocTypeWorkflowSummary, docs)
		if err != nil {
			return result, err
		}
		result.WorkflowsIndexed = n
	}

	if strings.TrimSpace(notes) != "" {
		doc := domain.Document{
			ID:        "notes-" + meeting.ID,
			OrgID:     meeting.OrgID,
			MeetingID: meeting.ID,
			Text:      notes,
		}
		n, err := s.addDocuments(ctx, domain.DocTypeNotes, []domain.Document{doc})
		if err != nil {
			return result, err
		}
		result.NotesIndexed = n > 0
	}

	s.logger.Info("Meeting indexed",
		zap.String("meeting_id", meeting.ID),
		zap.Bool("title", result.TitleIndexed),
		zap.Int("chunks", result.ChunksIndexed),
		zap.Int("workflows", result.WorkflowsIndexed),
		zap.Bool("notes", result.NotesIndexed),
	)
	return result, nil
}

func (s *Service) addDocuments(
	ctx context.Context, docType domain.DocType, docs []domain.Document,
) (int, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	batch, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s documents: %w", docType, err)
	}

	ids, err := s.store.AddDocuments(ctx, docType, docs, batch.Embeddings)
	if err != nil {
		return 0, fmt.Errorf("store %s documents: %w", docType, err)
	}
	return len(ids), nil
}

// workflowSummaryPrompt asks for a one-paragraph description suitable as a
// retrieval document.
const workflowSummaryPrompt = `Summarize the following workflow in one short paragraph. ` +
	`Describe what the workflow accomplishes and its key steps. ` +
	`Reply with the summary only.`

// summarizeWorkflow builds the indexable text for a workflow. When the LLM
// is unavailable the fallback lists the title and the first node labels so
// the workflow stays searchable.
func (s *Service) summarizeWorkflow(ctx context.Context, wf domain.Workflow) string {
	summary, err := s.llm.Chat(ctx, []domain.ChatMessage{
		domain.SystemMessage(workflowSummaryPrompt),
		domain.UserMessage(describeWorkflow(wf)),
	})
	if err == nil && strings.TrimSpace(summary) != "" {
		return strings.TrimSpace(summary)
	}
	if err != nil {
		s.logger.Warn("Workflow summary failed, using fallback",
			zap.String("workflow_id", wf.ID),
			zap.Error(err),
		)
	}
	return fallbackWorkflowSummary(wf)
}

func describeWorkflow(wf domain.Workflow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\nSteps:\n", wf.Title)
	for _, node := range wf.Nodes {
		fmt.Fprintf(&b, "- %s (%s)\n", node.Label, node.Type)
	}
	return b.String()
}

func fallbackWorkflowSummary(wf domain.Workflow) string {
	labels := make([]string, 0, 5)
	for _, node := range wf.Nodes {
		if node.Label == "" {
			continue
		}
		labels = append(labels, node.Label)
		if len(labels) == 5 {
			break
		}
	}
	if len(labels) == 0 {
		return wf.Title
	}
	return wf.Title + ": " + strings.Join(labels, ", ")
}
