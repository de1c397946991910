package eval

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/usecase/search"
)

// fakeSearcher returns canned results per strategy.
type fakeSearcher struct {
	results map[string]domain.SearchResult
}

func (f *fakeSearcher) Search(_ context.Context, name string, _ search.Request) domain.SearchResult {
	if res, ok := f.results[name]; ok {
		return res
	}
	return domain.Failure(name, "", "unknown strategy", nil)
}

func testDataset() Dataset {
	return Dataset{
		Name: "smoke",
		Cases: []TestCase{
			{
				ID:    "c1",
				Query: "what was decided about the budget",
				Relevant: []RelevantDoc{
					{DocID: "transcript_chunk:m1:0", Relevance: 2},
					{DocID: "meeting_title:m1:"},
				},
			},
			{
				ID:       "c2",
				Query:    "who owns onboarding",
				Relevant: []RelevantDoc{{DocID: "meeting_title:m2:"}},
			},
		},
	}
}

func goodResult(strategy string) domain.SearchResult {
	return domain.SearchResult{
		Strategy: strategy,
		Success:  true,
		Answer:   "answer",
		Sources: []domain.SourceReference{
			{MeetingID: "m1", DocType: domain.DocTypeTranscriptChunk, SourceID: "0", Score: 0.9},
			{MeetingID: "m1", DocType: domain.DocTypeTitle, Score: 0.8},
		},
	}
}

func TestRun_AggregatesPerStrategy(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]domain.SearchResult{
		"good": goodResult("good"),
		"bad":  domain.Failure("bad", "", "nothing found", nil),
	}}
	runner := NewRunner(searcher, 10, zap.NewNop())

	result, err := runner.Run(context.Background(), testDataset(), []string{"good", "bad"}, []int{1, 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(result.Aggregates))
	}
	if len(result.Cases) != 4 {
		t.Fatalf("expected 4 case results, got %d", len(result.Cases))
	}

	good, bad := result.Aggregates[0], result.Aggregates[1]
	if good.Strategy != "good" || bad.Strategy != "bad" {
		t.Fatalf("aggregate order wrong: %s, %s", good.Strategy, bad.Strategy)
	}
	if good.Failures != 0 || bad.Failures != 2 {
		t.Errorf("failures: good=%d bad=%d", good.Failures, bad.Failures)
	}
	// Case c1: both sources relevant, hit@1 = 1. Case c2: nothing relevant,
	// hit@1 = 0. Mean hit@1 = 0.5.
	if !almostEqual(good.Means["hit@1"], 0.5) {
		t.Errorf("good mean hit@1 = %v, want 0.5", good.Means["hit@1"])
	}
	if !almostEqual(bad.Means["hit@1"], 0) {
		t.Errorf("bad mean hit@1 = %v, want 0", bad.Means["hit@1"])
	}
	if !almostEqual(good.Means["mrr"], 0.5) {
		t.Errorf("good mean mrr = %v, want 0.5", good.Means["mrr"])
	}
}

func TestRun_CanonicalDocIDsSortedByScore(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]domain.SearchResult{
		"s": {
			Strategy: "s",
			Success:  true,
			Sources: []domain.SourceReference{
				{MeetingID: "m1", DocType: domain.DocTypeTitle, Score: 0.3},
				{MeetingID: "m1", DocType: domain.DocTypeTranscriptChunk, SourceID: "2", Score: 0.8},
			},
		},
	}}
	runner := NewRunner(searcher, 10, zap.NewNop())

	result, err := runner.Run(context.Background(), testDataset().Limit(1), []string{"s"}, []int{1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	retrieved := result.Cases[0].Retrieved
	want := []string{"transcript_chunk:m1:2", "meeting_title:m1:"}
	if len(retrieved) != 2 || retrieved[0] != want[0] || retrieved[1] != want[1] {
		t.Errorf("retrieved = %v, want %v", retrieved, want)
	}
}

func TestRun_EmptyInputs(t *testing.T) {
	runner := NewRunner(&fakeSearcher{}, 10, zap.NewNop())

	if _, err := runner.Run(context.Background(), Dataset{Name: "empty"}, []string{"s"}, nil); err == nil {
		t.Error("expected error for empty dataset")
	}
	if _, err := runner.Run(context.Background(), testDataset(), nil, nil); err == nil {
		t.Error("expected error for no strategies")
	}
}

func TestDatasetLoadAndLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "golden.json")
	content := `{
		"test_cases": [
			{"query": "q1", "relevant_docs": [{"doc_id": "meeting_title:m1:"}]},
			{"id": "named", "query": "q2", "relevant_docs": []}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Name != "golden" {
		t.Errorf("expected name from file stem, got %q", ds.Name)
	}
	if ds.Cases[0].ID != "case-1" || ds.Cases[1].ID != "named" {
		t.Errorf("case ids: %q, %q", ds.Cases[0].ID, ds.Cases[1].ID)
	}

	limited := ds.Limit(1)
	if len(limited.Cases) != 1 || len(ds.Cases) != 2 {
		t.Errorf("Limit changed the wrong thing: %d, %d", len(limited.Cases), len(ds.Cases))
	}
}

func TestDatasetLoad_FullFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labeled.json")
	content := `{
		"name": "regression",
		"test_cases": [
			{
				"id": "tc-1",
				"query": "what did we decide about pricing",
				"org_id": "org-9",
				"tags": ["pricing", "decisions"],
				"relevant_docs": [
					{"doc_id": "transcript_chunk:m7:3", "relevance": 2},
					{"doc_id": "meeting_title:m7:"}
				]
			}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Name != "regression" || len(ds.Cases) != 1 {
		t.Fatalf("dataset = %+v", ds)
	}

	tc := ds.Cases[0]
	if tc.ID != "tc-1" || tc.OrgID != "org-9" {
		t.Errorf("case = %+v", tc)
	}
	if len(tc.Tags) != 2 || tc.Tags[0] != "pricing" {
		t.Errorf("tags = %v", tc.Tags)
	}

	grades := tc.grades()
	if grades["transcript_chunk:m7:3"] != 2 {
		t.Errorf("graded doc relevance = %d, want 2", grades["transcript_chunk:m7:3"])
	}
	// Absent relevance counts as 1.
	if grades["meeting_title:m7:"] != 1 {
		t.Errorf("default relevance = %d, want 1", grades["meeting_title:m7:"])
	}
}

func TestDatasetLoad_EmptyQueryRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"test_cases": [{"query": "  "}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestPrintTableAndReports(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]domain.SearchResult{"s": goodResult("s")}}
	runner := NewRunner(searcher, 10, zap.NewNop())
	result, err := runner.Run(context.Background(), testDataset(), []string{"s"}, []int{1, 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var buf bytes.Buffer
	PrintTable(&buf, result)
	out := buf.String()
	for _, want := range []string{"strategy", "precision@1", "ndcg@3", "mrr", "s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	dir := t.TempDir()
	if err := SaveJSON(filepath.Join(dir, "run", "result.json"), result); err != nil {
		t.Errorf("SaveJSON: %v", err)
	}
	if err := SaveMarkdown(filepath.Join(dir, "run", "result.md"), result); err != nil {
		t.Errorf("SaveMarkdown: %v", err)
	}
	if err := SaveCaseDetails(filepath.Join(dir, "run", "cases.md"), result); err != nil {
		t.Errorf("SaveCaseDetails: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "run", "result.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "| s |") {
		t.Errorf("markdown missing strategy row:\n%s", md)
	}
}
