package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/metrics"
)

// Structured outputs and tool selection use a low temperature regardless of
// the configured chat temperature.
const structuredTemperature = 0.1

// LLM is a chat completion provider using the OpenAI-compatible API.
// It implements domain.ChatModel.
type LLM struct {
	client      *openai.Client
	model       string
	provider    string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// LLMConfig holds the chat completion provider settings.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Provider    string
	MaxTokens   int
	Temperature float32
	Logger      *zap.Logger
}

// NewLLM creates an OpenAI-compatible chat completion provider.
func NewLLM(cfg *LLMConfig) *LLM {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	l := &LLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		provider:    cfg.Provider,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
	if l.temperature <= 0 {
		l.temperature = 0.3
	}
	return l
}

// Chat returns a plain text completion for the conversation.
func (l *LLM) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	resp, err := l.complete(ctx, "chat", openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatJSON requests a JSON object completion and unmarshals it into out.
// Markdown code fences around the object are tolerated, and one repair pass
// strips invalid escape sequences before the output is rejected.
func (l *LLM) ChatJSON(ctx context.Context, messages []domain.ChatMessage, out any) error {
	resp, err := l.complete(ctx, "chat_json", openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   l.maxTokens,
		Temperature: structuredTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return err
	}

	raw := stripJSONFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	repaired := repairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		l.logger.Warn("LLM returned unparseable JSON",
			zap.String("model", l.model),
			zap.Error(err),
		)
		return fmt.Errorf("parse completion as JSON: %w", domain.ErrMalformedLLMOutput)
	}
	return nil
}

// ChatWithTools returns a completion that may request tool invocations.
func (l *LLM) ChatWithTools(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDescriptor) (domain.ChatResponse, error) {
	resp, err := l.complete(ctx, "chat_tools", openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   l.maxTokens,
		Temperature: structuredTemperature,
		Tools:       toOpenAITools(tools),
	})
	if err != nil {
		return domain.ChatResponse{}, err
	}

	msg := resp.Choices[0].Message
	out := domain.ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (l *LLM) complete(ctx context.Context, kind string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := l.client.CreateChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(l.provider, l.model, kind).
		Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, kind, "error").Inc()
		return openai.ChatCompletionResponse{}, fmt.Errorf(
			"chat completion (%s): %v: %w", kind, err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, kind, "error").Inc()
		return openai.ChatCompletionResponse{}, fmt.Errorf(
			"chat completion (%s): empty choices: %w", kind, domain.ErrLLMProviderError)
	}
	metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, kind, "success").Inc()
	return resp, nil
}

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []domain.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}
	return out
}

// stripJSONFences removes a surrounding markdown code fence, if any.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var invalidEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// repairJSON drops backslashes that do not start a valid JSON escape.
// Models occasionally emit sequences like \' or \( inside string values.
func repairJSON(s string) string {
	return invalidEscapeRe.ReplaceAllString(s, "$1")
}
