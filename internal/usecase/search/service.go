// Package search routes queries to registered retrieval strategies.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// StrategyInfo describes a registered strategy for discovery endpoints.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// Service is the strategy registry and dispatch point. Registration happens
// at composition time; dispatch is read-only, so no locking is needed.
type Service struct {
	strategies  map[string]Strategy
	defaultName string
	stats       StatsReader
	logger      *zap.Logger
}

// NewService creates an empty registry.
func NewService(stats StatsReader, logger *zap.Logger) *Service {
	return &Service{
		strategies: make(map[string]Strategy),
		stats:      stats,
		logger:     logger,
	}
}

// Register adds a strategy under its own name. Registering the same name
// twice replaces the previous strategy.
func (s *Service) Register(strategy Strategy) {
	s.strategies[strategy.Name()] = strategy
	if s.defaultName == "" {
		s.defaultName = strategy.Name()
	}
}

// SetDefault selects the strategy used when a request names none.
func (s *Service) SetDefault(name string) error {
	if _, ok := s.strategies[name]; !ok {
		return fmt.Errorf("set default %q: %w", name, domain.ErrStrategyNotFound)
	}
	s.defaultName = name
	return nil
}

// Strategies lists registered strategies sorted by name.
func (s *Service) Strategies() []StrategyInfo {
	infos := make([]StrategyInfo, 0, len(s.strategies))
	for name, strat := range s.strategies {
		infos = append(infos, StrategyInfo{
			Name:        name,
			Description: strat.Description(),
			Default:     name == s.defaultName,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Search dispatches to the named strategy, or the default when name is
// empty. An unknown strategy and a blank query are reported as failed
// results, not errors.
func (s *Service) Search(ctx context.Context, name string, req Request) domain.SearchResult {
	if name == "" {
		name = s.defaultName
	}
	strategy, ok := s.strategies[name]
	if !ok {
		return domain.Failure(name, "", fmt.Sprintf("Unknown search strategy: %s", name), nil)
	}
	if strings.TrimSpace(req.Query) == "" {
		return domain.Failure(name, "", "Query must not be empty", nil)
	}

	s.logger.Info("Dispatching search",
		zap.String("strategy", name),
		zap.String("org_id", req.OrgID),
	)
	result := strategy.Search(ctx, req)
	if !result.Success {
		s.logger.Warn("Search strategy reported failure",
			zap.String("strategy", name),
			zap.String("error", result.Error),
		)
	}
	return result
}

// Stats returns per-type index statistics.
func (s *Service) Stats(ctx context.Context) (map[domain.DocType]domain.IndexStats, error) {
	return s.stats.Stats(ctx)
}
