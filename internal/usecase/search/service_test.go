package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

type stubStrategy struct {
	name   string
	desc   string
	result domain.SearchResult
	gotReq *Request
}

func (s *stubStrategy) Name() string        { return s.name }
func (s *stubStrategy) Description() string { return s.desc }
func (s *stubStrategy) Search(_ context.Context, req Request) domain.SearchResult {
	s.gotReq = &req
	return s.result
}

type stubStats struct {
	stats map[domain.DocType]domain.IndexStats
	err   error
}

func (s *stubStats) Stats(_ context.Context) (map[domain.DocType]domain.IndexStats, error) {
	return s.stats, s.err
}

func newTestService() (*Service, *stubStrategy, *stubStrategy) {
	a := &stubStrategy{
		name:   "title_first",
		desc:   "Title match then answer",
		result: domain.SearchResult{Answer: "from a", Strategy: "title_first", Success: true},
	}
	b := &stubStrategy{
		name:   "agentic",
		desc:   "Tool-calling agent",
		result: domain.SearchResult{Answer: "from b", Strategy: "agentic", Success: true},
	}
	svc := NewService(&stubStats{}, zap.NewNop())
	svc.Register(a)
	svc.Register(b)
	return svc, a, b
}

func TestSearch_DispatchesByName(t *testing.T) {
	svc, _, b := newTestService()

	res := svc.Search(context.Background(), "agentic", Request{Query: "q", OrgID: "org-1", TopK: 5})
	if res.Answer != "from b" {
		t.Errorf("expected agentic result, got %q", res.Answer)
	}
	if b.gotReq == nil || b.gotReq.OrgID != "org-1" || b.gotReq.TopK != 5 {
		t.Errorf("request not forwarded: %+v", b.gotReq)
	}
}

func TestSearch_DefaultStrategy(t *testing.T) {
	svc, a, _ := newTestService()
	if err := svc.SetDefault("title_first"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}

	res := svc.Search(context.Background(), "", Request{Query: "q"})
	if res.Answer != "from a" {
		t.Errorf("expected default strategy result, got %q", res.Answer)
	}
	if a.gotReq == nil {
		t.Error("default strategy was not invoked")
	}
}

func TestSearch_UnknownStrategyIsFailureResult(t *testing.T) {
	svc, _, _ := newTestService()

	res := svc.Search(context.Background(), "telepathy", Request{Query: "q"})
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Error == "" {
		t.Error("expected error message in result")
	}
}

func TestSearch_EmptyQueryIsFailureResult(t *testing.T) {
	svc, a, _ := newTestService()

	res := svc.Search(context.Background(), "title_first", Request{Query: "   "})
	if res.Success {
		t.Fatal("expected failure result for blank query")
	}
	if a.gotReq != nil {
		t.Error("strategy must not run for blank query")
	}
}

func TestSetDefault_Unknown(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.SetDefault("missing"); !errors.Is(err, domain.ErrStrategyNotFound) {
		t.Errorf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestStrategies_SortedWithDefaultFlag(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.SetDefault("agentic"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}

	infos := svc.Strategies()
	if len(infos) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(infos))
	}
	if infos[0].Name != "agentic" || infos[1].Name != "title_first" {
		t.Errorf("expected sorted names, got %v", infos)
	}
	if !infos[0].Default || infos[1].Default {
		t.Errorf("default flag wrong: %v", infos)
	}
}
