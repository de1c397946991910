package titlefirst

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/usecase/search"
)

type mockEmbedder struct{ err error }

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

type mockIndex struct {
	hits []domain.SearchHit
	err  error
}

func (m *mockIndex) Search(
	_ context.Context, _ domain.DocType, _ []float32, _ int, _ string,
) ([]domain.SearchHit, error) {
	return m.hits, m.err
}

type mockMeetings struct {
	meetings map[string]domain.Meeting
	state    domain.MeetingState
	stateErr error
}

func (m *mockMeetings) GetMeeting(_ context.Context, id string) (domain.Meeting, error) {
	meeting, ok := m.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrMeetingNotFound
	}
	return meeting, nil
}

func (m *mockMeetings) GetLatestState(_ context.Context, _ string) (domain.MeetingState, error) {
	if m.stateErr != nil {
		return domain.MeetingState{}, m.stateErr
	}
	return m.state, nil
}

type mockLLM struct {
	jsonReply   string
	jsonErr     error
	chatReply   string
	chatErr     error
	lastChatMsg []domain.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, messages []domain.ChatMessage) (string, error) {
	m.lastChatMsg = messages
	return m.chatReply, m.chatErr
}

func (m *mockLLM) ChatJSON(_ context.Context, _ []domain.ChatMessage, out any) error {
	if m.jsonErr != nil {
		return m.jsonErr
	}
	return json.Unmarshal([]byte(m.jsonReply), out)
}

func (m *mockLLM) ChatWithTools(
	_ context.Context, _ []domain.ChatMessage, _ []domain.ToolDescriptor,
) (domain.ChatResponse, error) {
	return domain.ChatResponse{}, errors.New("not used")
}

func titleHit(meetingID, title string, score float64) domain.SearchHit {
	return domain.SearchHit{
		Document: domain.Document{
			ID:        "title-" + meetingID,
			MeetingID: meetingID,
			Text:      title,
		},
		Score:   score,
		DocType: domain.DocTypeTitle,
	}
}

func newTestStrategy(index *mockIndex, meetings *mockMeetings, llm *mockLLM) *Strategy {
	return New(&mockEmbedder{}, index, meetings, llm, 10, zap.NewNop())
}

func TestSearch_HappyPath(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{
		titleHit("m1", "Q3 Budget Review", 0.91),
		titleHit("m2", "Weekly Standup", 0.55),
	}}
	meetings := &mockMeetings{
		meetings: map[string]domain.Meeting{
			"m1": {ID: "m1", Title: "Q3 Budget Review", Transcript: "We cut marketing."},
		},
		state: domain.MeetingState{MeetingSummary: "Budget discussion."},
	}
	llm := &mockLLM{
		jsonReply: `{"selected": 1, "reasoning": "budget question matches budget review"}`,
		chatReply: "Marketing was cut.",
	}

	res := newTestStrategy(index, meetings, llm).Search(
		context.Background(), search.Request{Query: "what happened to the budget", OrgID: "org-1"})

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Answer != "Marketing was cut." {
		t.Errorf("got answer %q", res.Answer)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("expected exactly one source, got %d", len(res.Sources))
	}
	src := res.Sources[0]
	if src.MeetingID != "m1" || src.DocType != domain.DocTypeTitle || src.Score != 0.91 {
		t.Errorf("unexpected source: %+v", src)
	}
	if res.Debug["titles_found"] != 2 || res.Debug["selected_meeting_idx"] != 1 {
		t.Errorf("unexpected debug: %v", res.Debug)
	}
	// Answer prompt carries notes and transcript.
	sys := llm.lastChatMsg[0].Content
	if !strings.Contains(sys, "Budget discussion.") || !strings.Contains(sys, "We cut marketing.") {
		t.Errorf("answer prompt missing context: %q", sys)
	}
}

func TestSearch_NoTitles(t *testing.T) {
	res := newTestStrategy(&mockIndex{}, &mockMeetings{}, &mockLLM{}).Search(
		context.Background(), search.Request{Query: "anything"})

	if res.Success {
		t.Fatal("expected failure when no titles are indexed")
	}
	if res.Debug["titles_found"] != 0 {
		t.Errorf("unexpected debug: %v", res.Debug)
	}
}

func TestSearch_SelectionZeroMeansNoMatch(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{titleHit("m1", "Standup", 0.2)}}
	llm := &mockLLM{jsonReply: `{"selected": 0, "reasoning": "nothing relevant"}`}

	res := newTestStrategy(index, &mockMeetings{}, llm).Search(
		context.Background(), search.Request{Query: "quantum computing plans"})

	if res.Success {
		t.Fatal("expected failure for selection 0")
	}
	if res.Error != "No relevant meeting found" {
		t.Errorf("got error %q", res.Error)
	}
	if res.Debug["selection_reasoning"] != "nothing relevant" {
		t.Errorf("unexpected debug: %v", res.Debug)
	}
}

func TestSearch_SelectionLLMFailureFallsBackToTopScore(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{
		titleHit("m1", "Top Meeting", 0.9),
		titleHit("m2", "Second Meeting", 0.8),
	}}
	meetings := &mockMeetings{
		meetings: map[string]domain.Meeting{"m1": {ID: "m1", Title: "Top Meeting"}},
		stateErr: domain.ErrStateNotFound,
	}
	llm := &mockLLM{jsonErr: domain.ErrMalformedLLMOutput, chatReply: "answer"}

	res := newTestStrategy(index, meetings, llm).Search(
		context.Background(), search.Request{Query: "q"})

	if !res.Success {
		t.Fatalf("expected fallback success, got %q", res.Error)
	}
	if res.Sources[0].MeetingID != "m1" {
		t.Errorf("expected top scoring meeting, got %s", res.Sources[0].MeetingID)
	}
}

func TestSearch_SelectionOutOfRangeFallsBack(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{titleHit("m1", "Only Meeting", 0.7)}}
	meetings := &mockMeetings{
		meetings: map[string]domain.Meeting{"m1": {ID: "m1", Title: "Only Meeting"}},
		stateErr: domain.ErrStateNotFound,
	}
	llm := &mockLLM{jsonReply: `{"selected": 7, "reasoning": "hallucinated"}`, chatReply: "answer"}

	res := newTestStrategy(index, meetings, llm).Search(
		context.Background(), search.Request{Query: "q"})

	if !res.Success {
		t.Fatalf("expected fallback success, got %q", res.Error)
	}
	if res.Debug["selected_meeting_idx"] != 1 {
		t.Errorf("expected fallback to index 1, got %v", res.Debug["selected_meeting_idx"])
	}
}

func TestSearch_MeetingLoadFailure(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{titleHit("ghost", "Gone Meeting", 0.9)}}
	llm := &mockLLM{jsonReply: `{"selected": 1, "reasoning": "ok"}`}

	res := newTestStrategy(index, &mockMeetings{}, llm).Search(
		context.Background(), search.Request{Query: "q"})

	if res.Success {
		t.Fatal("expected failure when the meeting cannot be loaded")
	}
	if !strings.Contains(res.Error, "ghost") {
		t.Errorf("got error %q", res.Error)
	}
}

func TestSearch_AnswerLLMFailure(t *testing.T) {
	index := &mockIndex{hits: []domain.SearchHit{titleHit("m1", "Meeting", 0.9)}}
	meetings := &mockMeetings{
		meetings: map[string]domain.Meeting{"m1": {ID: "m1", Title: "Meeting"}},
		stateErr: domain.ErrStateNotFound,
	}
	llm := &mockLLM{jsonReply: `{"selected": 1, "reasoning": "ok"}`, chatErr: domain.ErrLLMProviderError}

	res := newTestStrategy(index, meetings, llm).Search(
		context.Background(), search.Request{Query: "q"})

	if res.Success {
		t.Fatal("expected failure when answer generation fails")
	}
}
