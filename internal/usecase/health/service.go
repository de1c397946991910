package health

import (
	"context"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates component checks with index and registry overview.
type Report struct {
	Status          Status                               `json:"status"`
	Checks          map[string]CheckResult               `json:"checks"`
	TotalDocuments  int                                  `json:"total_documents"`
	IndexStats      map[domain.DocType]domain.IndexStats `json:"index_stats,omitempty"`
	Strategies      []string                             `json:"strategies_available,omitempty"`
	DefaultStrategy string                               `json:"default_strategy,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	indexStore IndexReader
	meetingDB  Pinger
	embedding  EmbeddingChecker
	cache      Pinger

	strategies      []string
	defaultStrategy string
}

// New creates a Service. embedding and cache can be nil.
func New(indexStore IndexReader, meetingDB Pinger, embedding EmbeddingChecker, cache Pinger) *Service {
	return &Service{
		indexStore: indexStore,
		meetingDB:  meetingDB,
		embedding:  embedding,
		cache:      cache,
	}
}

// WithStrategies records the registered strategy names for the report.
func (s *Service) WithStrategies(names []string, defaultName string) *Service {
	s.strategies = names
	s.defaultStrategy = defaultName
	return s
}

// Check runs health checks against all components. Any failing component
// degrades the aggregate status; a failed stats read degrades the index
// store check without erroring the whole report.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	report := Report{
		Strategies:      s.strategies,
		DefaultStrategy: s.defaultStrategy,
	}

	stats, err := s.indexStore.Stats(ctx)
	if err != nil {
		checks["index_store"] = CheckError
	} else {
		checks["index_store"] = CheckOK
		report.IndexStats = stats
		for _, st := range stats {
			report.TotalDocuments += st.Documents
		}
	}

	checks["meeting_db"] = pingResult(ctx, s.meetingDB)

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.cache != nil {
		checks["cache"] = pingResult(ctx, s.cache)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	report.Status = status
	report.Checks = checks
	return report
}

func pingResult(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
