package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	healthuc "github.com/kailas-cloud/meetdex/internal/usecase/health"
	"github.com/kailas-cloud/meetdex/internal/usecase/indexer"
	searchuc "github.com/kailas-cloud/meetdex/internal/usecase/search"
)

type stubStrategy struct {
	name    string
	lastReq searchuc.Request
	result  domain.SearchResult
}

func (s *stubStrategy) Name() string        { return s.name }
func (s *stubStrategy) Description() string { return "stub" }
func (s *stubStrategy) Search(_ context.Context, req searchuc.Request) domain.SearchResult {
	s.lastReq = req
	return s.result
}

type stubStats struct {
	stats map[domain.DocType]domain.IndexStats
	err   error
}

func (s *stubStats) Stats(context.Context) (map[domain.DocType]domain.IndexStats, error) {
	return s.stats, s.err
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

type stubSubmitter struct {
	lastMeetingID string
	err           error
}

func (s *stubSubmitter) Submit(_ context.Context, meetingID string) (*indexer.Job, error) {
	s.lastMeetingID = meetingID
	if s.err != nil {
		return nil, s.err
	}
	return &indexer.Job{ID: "job-1", MeetingID: meetingID}, nil
}

type serverFixture struct {
	router    chi.Router
	strategy  *stubStrategy
	stats     *stubStats
	meetingDB *stubPinger
	submitter *stubSubmitter
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	strategy := &stubStrategy{
		name: "title_first",
		result: domain.SearchResult{
			Success:  true,
			Strategy: "title_first",
			Answer:   "an answer",
		},
	}
	stats := &stubStats{stats: map[domain.DocType]domain.IndexStats{
		domain.DocTypeTitle: {Documents: 3, Vectors: 4},
	}}

	searchSvc := searchuc.NewService(stats, zap.NewNop())
	searchSvc.Register(strategy)

	meetingDB := &stubPinger{}
	healthSvc := healthuc.New(stats, meetingDB, nil, nil).
		WithStrategies([]string{"title_first"}, "title_first")

	submitter := &stubSubmitter{}
	srv := NewServer(searchSvc, healthSvc, submitter, zap.NewNop())

	r := chi.NewRouter()
	srv.Routes(r)

	return &serverFixture{
		router:    r,
		strategy:  strategy,
		stats:     stats,
		meetingDB: meetingDB,
		submitter: submitter,
	}
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	f := newTestServer(t)

	body := `{"query":"standup followups","org_id":"org-1","top_k":7,"history":[{"role":"user","content":"hi"}]}`
	rec := doJSON(t, f.router, http.MethodPost, "/search", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var result domain.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !result.Success || result.Answer != "an answer" {
		t.Errorf("unexpected result: %+v", result)
	}
	if f.strategy.lastReq.Query != "standup followups" {
		t.Errorf("query = %q", f.strategy.lastReq.Query)
	}
	if f.strategy.lastReq.OrgID != "org-1" || f.strategy.lastReq.TopK != 7 {
		t.Errorf("request = %+v", f.strategy.lastReq)
	}
	if len(f.strategy.lastReq.History) != 1 || f.strategy.lastReq.History[0].Content != "hi" {
		t.Errorf("history = %+v", f.strategy.lastReq.History)
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodPost, "/search", `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Code != codeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSearchEndpointMalformedBody(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodPost, "/search", `{"query": nope}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpointStrategyFailureIsHTTP200(t *testing.T) {
	f := newTestServer(t)
	f.strategy.result = domain.Failure("title_first", "", "No relevant meeting found", nil)

	rec := doJSON(t, f.router, http.MethodPost, "/search", `{"query":"anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result domain.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Success {
		t.Error("expected success=false")
	}
	if result.Error != "No relevant meeting found" {
		t.Errorf("error = %q", result.Error)
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodGet, "/strategies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Strategies []searchuc.StrategyInfo `json:"strategies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Strategies) != 1 || resp.Strategies[0].Name != "title_first" || !resp.Strategies[0].Default {
		t.Errorf("strategies = %+v", resp.Strategies)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status         string   `json:"status"`
		TotalDocuments int      `json:"total_documents"`
		Strategies     []string `json:"strategies_available"`
		Default        string   `json:"default_strategy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.TotalDocuments != 3 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Strategies) != 1 || resp.Strategies[0] != "title_first" || resp.Default != "title_first" {
		t.Errorf("strategies = %v default = %q", resp.Strategies, resp.Default)
	}
}

func TestHealthzEndpointDegraded(t *testing.T) {
	f := newTestServer(t)
	f.meetingDB.err = errors.New("db is down")

	rec := doJSON(t, f.router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["meeting_db"] != "error" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "meeting_title") {
		t.Errorf("body missing index stats: %s", rec.Body.String())
	}
}

func TestStatsEndpointError(t *testing.T) {
	f := newTestServer(t)
	f.stats.err = errors.New("disk gone")

	rec := doJSON(t, f.router, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk gone") {
		t.Error("internal error detail leaked to client")
	}
}

func TestReindexEndpoint(t *testing.T) {
	f := newTestServer(t)

	rec := doJSON(t, f.router, http.MethodPost, "/meetings/m-42/reindex", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["job_id"] != "job-1" || resp["meeting_id"] != "m-42" {
		t.Errorf("response = %v", resp)
	}
	if f.submitter.lastMeetingID != "m-42" {
		t.Errorf("submitted meeting = %q", f.submitter.lastMeetingID)
	}
}

func TestReindexEndpointMeetingNotFound(t *testing.T) {
	f := newTestServer(t)
	f.submitter.err = domain.ErrMeetingNotFound

	rec := doJSON(t, f.router, http.MethodPost, "/meetings/nope/reindex", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != codeMeetingNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}
