// Package agentic implements the tool-calling retrieval strategy: the model
// drives a bounded loop of search and fetch tools, then composes an answer
// from whatever context the tools gathered.
package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/usecase/search"
)

// StrategyName identifies this pipeline in results and the registry.
const StrategyName = "agentic"

// Agent termination statuses.
const (
	statusReady     = "ready"
	statusNoResults = "no_results"
	statusContinue  = "continue"
)

// Strategy is the tool-calling agent.
type Strategy struct {
	embedder      domain.Embedder
	index         IndexSearcher
	meetings      MeetingReader
	llm           domain.ChatModel
	maxIterations int
	logger        *zap.Logger
}

// New creates the agentic strategy. maxIterations bounds the tool loop.
func New(
	embedder domain.Embedder,
	index IndexSearcher,
	meetings MeetingReader,
	llm domain.ChatModel,
	maxIterations int,
	logger *zap.Logger,
) *Strategy {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &Strategy{
		embedder:      embedder,
		index:         index,
		meetings:      meetings,
		llm:           llm,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Name implements search.Strategy.
func (s *Strategy) Name() string { return StrategyName }

// Description implements search.Strategy.
func (s *Strategy) Description() string {
	return "Iteratively searches meetings, transcripts and workflows with tools, then answers from the gathered context"
}

const agentSystemPrompt = `You are a meeting research agent. Use the available tools to find ` +
	`the information needed to answer the user's question about their meetings. ` +
	`Search broadly first, then fetch transcripts or notes for the most promising meetings. ` +
	`When you stop calling tools, respond with JSON only: ` +
	`{"status": "ready"} when you have enough context to answer, ` +
	`{"status": "no_results"} when the indexed meetings cannot answer the question, ` +
	`{"status": "continue"} when you want to keep searching.`

// termination is the agent's structured stop signal.
type termination struct {
	Status string `json:"status"`
}

// Search implements search.Strategy.
func (s *Strategy) Search(ctx context.Context, req search.Request) domain.SearchResult {
	gathered := newGatheredContext()
	exec := &executor{
		embedder: s.embedder,
		index:    s.index,
		meetings: s.meetings,
		orgID:    req.OrgID,
		gathered: gathered,
		logger:   s.logger,
	}

	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, domain.SystemMessage(agentSystemPrompt))
	messages = append(messages, req.History...)
	messages = append(messages, domain.UserMessage(req.Query))

	debug := map[string]any{}
	tools := toolDescriptors()
	var toolCallCount int

	for iteration := 1; iteration <= s.maxIterations; iteration++ {
		debug["iterations"] = iteration

		resp, err := s.llm.ChatWithTools(ctx, messages, tools)
		if err != nil {
			return domain.Failure(StrategyName, "",
				fmt.Sprintf("Agent LLM call failed: %v", err), debug)
		}

		if len(resp.ToolCalls) == 0 {
			status := parseTermination(resp.Content)
			debug["termination_status"] = status
			switch status {
			case statusReady:
				return s.finish(ctx, req, gathered, debug, false)
			case statusNoResults:
				return domain.Failure(StrategyName,
					"I couldn't find anything in your meetings that answers this question.",
					"Agent reported no results", debug)
			default:
				// continue without tool calls: nudge the model forward.
				messages = append(messages,
					domain.AssistantMessage(resp.Content),
					domain.UserMessage("Continue: call a tool, or reply with a final status JSON."),
				)
				continue
			}
		}

		messages = append(messages, domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			toolCallCount++
			result := exec.execute(ctx, call)
			messages = append(messages, domain.ToolMessage(call.ID, result))
		}
		debug["tool_calls"] = toolCallCount
	}

	// Iteration budget exhausted. Answer from whatever was gathered; with
	// nothing gathered there is nothing to answer from.
	if gathered.empty() {
		return domain.Failure(StrategyName,
			"I couldn't find anything in your meetings that answers this question.",
			"Agent exhausted its iteration budget without gathering context", debug)
	}
	return s.finish(ctx, req, gathered, debug, true)
}

// parseTermination reads the agent's stop signal. Unparseable output means
// the agent wants to continue; the loop bound still applies.
func parseTermination(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i >= 0 {
		content = content[i:]
	}
	var t termination
	if err := json.Unmarshal([]byte(content), &t); err != nil {
		return statusContinue
	}
	switch t.Status {
	case statusReady, statusNoResults:
		return t.Status
	}
	return statusContinue
}

const answerSystemPrompt = `You answer questions about meetings using only the research context below. ` +
	`Cite which meeting information comes from. If the context is incomplete, say what is missing.`

// finish generates the final answer from the gathered context. partial marks
// answers produced after the iteration budget ran out.
func (s *Strategy) finish(
	ctx context.Context, req search.Request,
	gathered *gatheredContext, debug map[string]any, partial bool,
) domain.SearchResult {
	debug["partial"] = partial
	if gathered.empty() {
		return domain.Failure(StrategyName,
			"I couldn't find anything in your meetings that answers this question.",
			"Agent finished without gathering context", debug)
	}

	prompt := answerSystemPrompt + "\n\n# Research Context\n" + gathered.buildPrompt()
	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, domain.SystemMessage(prompt))
	messages = append(messages, req.History...)
	messages = append(messages, domain.UserMessage(req.Query))

	answer, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return domain.Failure(StrategyName, "",
			fmt.Sprintf("Failed to generate answer: %v", err), debug)
	}

	sources := gathered.buildSources()
	debug["sources_found"] = len(sources)
	return domain.SearchResult{
		Answer:   answer,
		Sources:  sources,
		Strategy: StrategyName,
		Success:  true,
		Debug:    debug,
	}
}
