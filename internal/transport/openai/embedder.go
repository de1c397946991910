// Package openai talks to OpenAI-compatible embedding and chat-completion
// APIs. One Embedder and one LLM are created at process start and shared;
// embedding dimension and provider config stay consistent for the process
// lifetime.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/metrics"
)

// Defaults for the embedding client. The character budget approximates the
// provider's 8191-token limit at ~4 characters per token.
const (
	defaultMaxRetries    = 3
	defaultRetryDelay    = time.Second
	defaultBatchSize     = 100
	defaultMaxInputChars = 8191 * 4
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client        *openai.Client
	model         openai.EmbeddingModel
	dimensions    int
	provider      string
	maxRetries    int
	retryDelay    time.Duration
	batchSize     int
	maxInputChars int
	logger        *zap.Logger
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	e := &Embedder{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         openai.EmbeddingModel(cfg.Model),
		dimensions:    cfg.Dimensions,
		provider:      cfg.Provider,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		batchSize:     cfg.BatchSize,
		maxInputChars: defaultMaxInputChars,
		logger:        cfg.Logger,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	if e.retryDelay <= 0 {
		e.retryDelay = defaultRetryDelay
	}
	if e.batchSize <= 0 {
		e.batchSize = defaultBatchSize
	}
	return e
}

// Embed implements domain.Embedder. Blank input yields an empty vector
// without a network call.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{Embedding: []float32{}}, nil
	}

	resp, err := e.createWithRetry(ctx, []string{e.truncate(text)})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// EmbedBatch implements domain.BatchEmbedder: one vector per input in input
// order; blank inputs map to empty vectors. Calls are chunked at the
// configured batch size regardless of caller batch size, and a chunk whose
// retries are exhausted fails the whole call so results never misalign.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	result := domain.BatchEmbeddingResult{
		Embeddings: make([][]float32, len(texts)),
	}
	for i := range result.Embeddings {
		result.Embeddings[i] = []float32{}
	}

	var validTexts []string
	var validIdx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		validTexts = append(validTexts, e.truncate(t))
		validIdx = append(validIdx, i)
	}
	if len(validTexts) == 0 {
		return result, nil
	}

	for start := 0; start < len(validTexts); start += e.batchSize {
		end := min(start+e.batchSize, len(validTexts))

		resp, err := e.createWithRetry(ctx, validTexts[start:end])
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(resp.Data) != end-start {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response has %d vectors for %d inputs: %w",
				len(resp.Data), end-start, domain.ErrEmbeddingProviderError)
		}

		for j, data := range resp.Data {
			result.Embeddings[validIdx[start+j]] = data.Embedding
		}
		result.PromptTokens += resp.Usage.PromptTokens
		result.TotalTokens += resp.Usage.TotalTokens
	}
	return result, nil
}

// createWithRetry performs one embedding API call with bounded retries and
// linearly increasing backoff (attempt x delay).
func (e *Embedder) createWithRetry(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		start := time.Now()
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err == nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
			metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).
				Observe(time.Since(start).Seconds())
			if resp.Usage.TotalTokens > 0 {
				metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").
					Add(float64(resp.Usage.PromptTokens))
				metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").
					Add(float64(resp.Usage.TotalTokens))
			}
			return resp, nil
		}

		lastErr = err
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		if attempt == e.maxRetries {
			break
		}

		metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider, string(e.model)).Inc()
		e.logger.Warn("Embedding call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.maxRetries),
			zap.Error(err),
		)
		select {
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		case <-ctx.Done():
			return openai.EmbeddingResponse{}, fmt.Errorf("embedding cancelled: %w", ctx.Err())
		}
	}

	return openai.EmbeddingResponse{}, fmt.Errorf(
		"embedding failed after %d attempts: %w", e.maxRetries, parseAPIError(lastErr))
}

// truncate cuts text to the character budget, backing up to a rune boundary
// so the provider never receives a split multi-byte character.
func (e *Embedder) truncate(text string) string {
	if len(text) <= e.maxInputChars {
		return text
	}
	cut := e.maxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
