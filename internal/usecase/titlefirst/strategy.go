// Package titlefirst implements the deterministic retrieval pipeline:
// match the query against meeting titles, pick one meeting, answer from
// that meeting's full context.
package titlefirst

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/usecase/search"
)

// StrategyName identifies this pipeline in results and the registry.
const StrategyName = "title_first"

// maxTranscriptChars bounds the transcript portion of the answer prompt.
const maxTranscriptChars = 50000

// IndexSearcher runs similarity search over one document type.
type IndexSearcher interface {
	Search(ctx context.Context, docType domain.DocType, query []float32, k int, orgID string) ([]domain.SearchHit, error)
}

// MeetingReader loads the selected meeting and its latest state.
type MeetingReader interface {
	GetMeeting(ctx context.Context, id string) (domain.Meeting, error)
	GetLatestState(ctx context.Context, meetingID string) (domain.MeetingState, error)
}

// Strategy answers questions by selecting one meeting by title relevance.
type Strategy struct {
	embedder domain.Embedder
	index    IndexSearcher
	meetings MeetingReader
	llm      domain.ChatModel
	topK     int
	logger   *zap.Logger
}

// New creates the title-first strategy. topK is how many title candidates
// the selection step sees.
func New(
	embedder domain.Embedder,
	index IndexSearcher,
	meetings MeetingReader,
	llm domain.ChatModel,
	topK int,
	logger *zap.Logger,
) *Strategy {
	if topK <= 0 {
		topK = 10
	}
	return &Strategy{
		embedder: embedder,
		index:    index,
		meetings: meetings,
		llm:      llm,
		topK:     topK,
		logger:   logger,
	}
}

// Name implements search.Strategy.
func (s *Strategy) Name() string { return StrategyName }

// Description implements search.Strategy.
func (s *Strategy) Description() string {
	return "Finds the most relevant meeting by title, then answers from that meeting's notes and transcript"
}

// selection is the LLM's title choice. Selected is 1-based; 0 means no
// candidate matches the question.
type selection struct {
	Selected  int    `json:"selected"`
	Reasoning string `json:"reasoning"`
}

// Search implements search.Strategy. Every failure mode is reported in the
// result; the pipeline itself never errors out to the caller.
func (s *Strategy) Search(ctx context.Context, req search.Request) domain.SearchResult {
	debug := map[string]any{}

	emb, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return domain.Failure(StrategyName, "",
			fmt.Sprintf("Failed to embed query: %v", err), debug)
	}

	hits, err := s.index.Search(ctx, domain.DocTypeTitle, emb.Embedding, s.topK, req.OrgID)
	if err != nil {
		return domain.Failure(StrategyName, "",
			fmt.Sprintf("Title search failed: %v", err), debug)
	}
	debug["titles_found"] = len(hits)
	if len(hits) == 0 {
		return domain.Failure(StrategyName,
			"I couldn't find any meetings matching your question.",
			"No meetings indexed for this organization", debug)
	}

	idx, reasoning := s.selectMeeting(ctx, req.Query, hits)
	debug["selected_meeting_idx"] = idx
	debug["selection_reasoning"] = reasoning
	if idx == 0 {
		return domain.Failure(StrategyName,
			"I couldn't find a meeting relevant to your question.",
			"No relevant meeting found", debug)
	}

	chosen := hits[idx-1]
	debug["selected_meeting_id"] = chosen.Document.MeetingID
	debug["selected_title"] = chosen.Document.Text

	meeting, err := s.meetings.GetMeeting(ctx, chosen.Document.MeetingID)
	if err != nil {
		return domain.Failure(StrategyName, "",
			fmt.Sprintf("Failed to load meeting %s: %v", chosen.Document.MeetingID, err), debug)
	}
	notes := s.loadNotes(ctx, meeting.ID)

	answer, err := s.answer(ctx, req, meeting, notes)
	if err != nil {
		return domain.Failure(StrategyName, "",
			fmt.Sprintf("Failed to generate answer: %v", err), debug)
	}

	return domain.SearchResult{
		Answer: answer,
		Sources: []domain.SourceReference{{
			MeetingID:    meeting.ID,
			MeetingTitle: meeting.Title,
			DocType:      domain.DocTypeTitle,
			Snippet:      meeting.Title,
			Score:        chosen.Score,
		}},
		Strategy: StrategyName,
		Success:  true,
		Debug:    debug,
	}
}

const selectionPrompt = `You are given a user question and a numbered list of meeting titles. ` +
	`Pick the single meeting most likely to answer the question. ` +
	`Respond with JSON: {"selected": <number>, "reasoning": "<why>"}. ` +
	`Use 0 for "selected" when no meeting is relevant.`

// selectMeeting asks the LLM to choose a candidate. On LLM failure the top
// scoring title is used so provider hiccups degrade instead of failing.
func (s *Strategy) selectMeeting(ctx context.Context, query string, hits []domain.SearchHit) (int, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nMeetings:\n", query)
	for i, hit := range hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, hit.Document.Text)
	}

	var sel selection
	err := s.llm.ChatJSON(ctx, []domain.ChatMessage{
		domain.SystemMessage(selectionPrompt),
		domain.UserMessage(b.String()),
	}, &sel)
	if err != nil {
		s.logger.Warn("Title selection failed, falling back to top score", zap.Error(err))
		return 1, "fallback: highest title similarity"
	}
	if sel.Selected < 0 || sel.Selected > len(hits) {
		s.logger.Warn("Title selection out of range, falling back to top score",
			zap.Int("selected", sel.Selected))
		return 1, "fallback: selection out of range"
	}
	return sel.Selected, sel.Reasoning
}

// loadNotes returns the latest meeting summary, if any. A missing state is
// routine and leaves notes empty.
func (s *Strategy) loadNotes(ctx context.Context, meetingID string) string {
	state, err := s.meetings.GetLatestState(ctx, meetingID)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			s.logger.Warn("Failed to load meeting state",
				zap.String("meeting_id", meetingID),
				zap.Error(err),
			)
		}
		return ""
	}
	return state.MeetingSummary
}

const answerSystemPrompt = `You answer questions about a meeting using the provided context. ` +
	`Base your answer only on the meeting content below. ` +
	`If the context does not contain the answer, say so.`

func (s *Strategy) answer(
	ctx context.Context, req search.Request,
	meeting domain.Meeting, notes string,
) (string, error) {
	var b strings.Builder
	b.WriteString(answerSystemPrompt)
	fmt.Fprintf(&b, "\n\nMeeting: %s\n", meeting.Title)
	if notes != "" {
		fmt.Fprintf(&b, "\nMeeting Notes:\n%s\n", notes)
	}
	transcript := meeting.Transcript
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}
	if transcript != "" {
		fmt.Fprintf(&b, "\nTranscript:\n%s\n", transcript)
	}

	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, domain.SystemMessage(b.String()))
	messages = append(messages, req.History...)
	messages = append(messages, domain.UserMessage(req.Query))

	return s.llm.Chat(ctx, messages)
}
