// Command meetdex-eval runs the retrieval evaluation harness against a
// dataset of graded queries and writes per-strategy reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/config"
	"github.com/kailas-cloud/meetdex/internal/eval"
	logpkg "github.com/kailas-cloud/meetdex/internal/logger"
	"github.com/kailas-cloud/meetdex/internal/metrics"
	"github.com/kailas-cloud/meetdex/internal/repository/indexstore"
	meetingrepo "github.com/kailas-cloud/meetdex/internal/repository/meeting"
	openaiTransport "github.com/kailas-cloud/meetdex/internal/transport/openai"
	"github.com/kailas-cloud/meetdex/internal/usecase/agentic"
	searchuc "github.com/kailas-cloud/meetdex/internal/usecase/search"
	"github.com/kailas-cloud/meetdex/internal/usecase/titlefirst"
	"github.com/kailas-cloud/meetdex/internal/version"
)

type evalFlags struct {
	dataset    string
	strategies []string
	ks         []int
	outDir     string
	topK       int
	limit      int
}

func main() {
	flags := evalFlags{}

	cmd := &cobra.Command{
		Use:     "meetdex-eval",
		Short:   "Run retrieval quality evaluation against a graded dataset",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd.Context(), flags)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&flags.dataset, "dataset", "", "path to the dataset JSON file (required)")
	cmd.Flags().StringSliceVar(&flags.strategies, "strategies", []string{titlefirst.StrategyName, agentic.StrategyName}, "strategies to evaluate")
	cmd.Flags().IntSliceVar(&flags.ks, "k", []int{1, 3, 5}, "cutoffs for @k metrics")
	cmd.Flags().StringVar(&flags.outDir, "out", "eval_runs", "directory for report output")
	cmd.Flags().IntVar(&flags.topK, "top-k", 10, "results requested per search")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "evaluate only the first N cases (0 = all)")
	_ = cmd.MarkFlagRequired("dataset")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runEval(ctx context.Context, flags evalFlags) error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	ds, err := eval.Load(flags.dataset)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if flags.limit > 0 {
		ds = ds.Limit(flags.limit)
	}
	logger.Info("Dataset loaded",
		zap.String("name", ds.Name),
		zap.Int("cases", len(ds.Cases)),
	)

	searchSvc, cleanup, err := buildSearchService(&cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := eval.NewRunner(searchSvc, flags.topK, logger)
	result, err := runner.Run(ctx, ds, flags.strategies, flags.ks)
	if err != nil {
		return fmt.Errorf("run evaluation: %w", err)
	}

	eval.PrintTable(os.Stdout, result)

	runDir := filepath.Join(flags.outDir, time.Now().Format("20060102-150405"))
	if err := eval.SaveJSON(filepath.Join(runDir, "results.json"), result); err != nil {
		return fmt.Errorf("save json report: %w", err)
	}
	if err := eval.SaveMarkdown(filepath.Join(runDir, "results.md"), result); err != nil {
		return fmt.Errorf("save markdown report: %w", err)
	}
	if err := eval.SaveCaseDetails(filepath.Join(runDir, "cases.md"), result); err != nil {
		return fmt.Errorf("save case details: %w", err)
	}

	fmt.Printf("\nReports written to %s\n", runDir)
	return nil
}

// buildSearchService wires the full retrieval stack without the HTTP layer.
// Evaluation talks to providers directly, so no embedding cache: cached
// vectors would hide provider latency and cost from the run.
func buildSearchService(cfg *config.Config, logger *zap.Logger) (*searchuc.Service, func(), error) {
	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		MaxRetries: cfg.Embedding.MaxRetries,
		RetryDelay: time.Duration(cfg.Embedding.RetryDelaySec) * time.Second,
		BatchSize:  cfg.Embedding.BatchSize,
		Logger:     logger,
	})

	llm := openaiTransport.NewLLM(&openaiTransport.LLMConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Provider:    cfg.LLM.Provider,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	meetings, err := meetingrepo.New(cfg.Storage.MeetingDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open meeting database: %w", err)
	}

	store, err := indexstore.New(indexstore.Config{
		Dir:    cfg.Storage.IndexDir,
		DBPath: cfg.Storage.IndexDBPath,
		Dim:    cfg.Embedding.Dimensions,
	}, embedder, logger)
	if err != nil {
		_ = meetings.Close()
		return nil, nil, fmt.Errorf("open index store: %w", err)
	}

	searchSvc := searchuc.NewService(store, logger)
	searchSvc.Register(titlefirst.New(embedder, store, meetings, llm, cfg.Search.TitleTopK, logger))
	searchSvc.Register(agentic.New(embedder, store, meetings, llm, cfg.Search.AgentMaxIterations, logger))

	cleanup := func() {
		_ = store.Close()
		_ = meetings.Close()
	}
	return searchSvc, cleanup, nil
}
