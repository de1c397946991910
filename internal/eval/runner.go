package eval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/usecase/search"
)

// Searcher dispatches a query to a named strategy.
type Searcher interface {
	Search(ctx context.Context, name string, req search.Request) domain.SearchResult
}

// CaseResult is one (strategy, case) evaluation.
type CaseResult struct {
	Strategy  string             `json:"strategy"`
	CaseID    string             `json:"case_id"`
	Query     string             `json:"query"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Retrieved []string           `json:"retrieved"`
	Metrics   map[string]float64 `json:"metrics"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
}

// StrategyAggregate is a strategy's arithmetic-mean metrics over all cases.
type StrategyAggregate struct {
	Strategy string             `json:"strategy"`
	Cases    int                `json:"cases"`
	Failures int                `json:"failures"`
	Means    map[string]float64 `json:"means"`
}

// Result is a full evaluation run.
type Result struct {
	Dataset    string              `json:"dataset"`
	RanAt      time.Time           `json:"ran_at"`
	Ks         []int               `json:"ks"`
	Aggregates []StrategyAggregate `json:"aggregates"`
	Cases      []CaseResult        `json:"cases"`
}

// Runner evaluates strategies against a dataset.
type Runner struct {
	searcher Searcher
	topK     int
	logger   *zap.Logger
}

// NewRunner creates a runner. topK is the result depth requested from each
// strategy; it should be at least the largest cutoff.
func NewRunner(searcher Searcher, topK int, logger *zap.Logger) *Runner {
	if topK <= 0 {
		topK = 10
	}
	return &Runner{searcher: searcher, topK: topK, logger: logger}
}

// Run evaluates each strategy over every case and aggregates per strategy.
// A failed search still produces a case result with zeroed metrics, so weak
// strategies score low instead of vanishing from the report.
func (r *Runner) Run(ctx context.Context, ds Dataset, strategies []string, ks []int) (Result, error) {
	if len(ds.Cases) == 0 {
		return Result{}, fmt.Errorf("dataset %s has no cases", ds.Name)
	}
	if len(strategies) == 0 {
		return Result{}, fmt.Errorf("no strategies to evaluate")
	}
	if len(ks) == 0 {
		ks = []int{1, 3, 5}
	}

	result := Result{
		Dataset: ds.Name,
		RanAt:   time.Now().UTC(),
		Ks:      ks,
	}

	for _, strategy := range strategies {
		agg := StrategyAggregate{Strategy: strategy, Means: map[string]float64{}}

		for _, tc := range ds.Cases {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("evaluation cancelled: %w", err)
			}

			cr := r.runCase(ctx, strategy, tc, ks)
			result.Cases = append(result.Cases, cr)

			agg.Cases++
			if !cr.Success {
				agg.Failures++
			}
			for name, v := range cr.Metrics {
				agg.Means[name] += v
			}
		}

		for name := range agg.Means {
			agg.Means[name] /= float64(agg.Cases)
		}
		result.Aggregates = append(result.Aggregates, agg)

		r.logger.Info("Strategy evaluated",
			zap.String("strategy", strategy),
			zap.Int("cases", agg.Cases),
			zap.Int("failures", agg.Failures),
		)
	}

	return result, nil
}

func (r *Runner) runCase(ctx context.Context, strategy string, tc TestCase, ks []int) CaseResult {
	start := time.Now()
	sr := r.searcher.Search(ctx, strategy, search.Request{
		Query: tc.Query,
		OrgID: tc.OrgID,
		TopK:  r.topK,
	})
	elapsed := time.Since(start)

	retrieved := extractDocIDs(sr)
	return CaseResult{
		Strategy:  strategy,
		CaseID:    tc.ID,
		Query:     tc.Query,
		Success:   sr.Success,
		Error:     sr.Error,
		Retrieved: retrieved,
		Metrics:   ComputeAll(retrieved, tc.grades(), ks),
		Elapsed:   elapsed,
	}
}

// extractDocIDs lists the result's sources as canonical doc ids, highest
// score first.
func extractDocIDs(sr domain.SearchResult) []string {
	sources := append([]domain.SourceReference(nil), sr.Sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Score > sources[j].Score })

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, domain.CanonicalDocID(src.DocType, src.MeetingID, src.SourceID))
	}
	return ids
}
