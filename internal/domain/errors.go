package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrMeetingNotFound signals a missing meeting.
	ErrMeetingNotFound = errors.New("meeting not found")
	// ErrStateNotFound signals a meeting with no stored state version.
	ErrStateNotFound = errors.New("meeting state not found")
	// ErrStrategyNotFound signals an unregistered search strategy.
	ErrStrategyNotFound = errors.New("strategy not registered")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyQuery signals a blank query where content is required.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrEmbeddingProviderError signals an embedding provider failure
	// after retries are exhausted.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a completion provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrMalformedLLMOutput signals LLM output that stayed unparseable
	// after the repair pass.
	ErrMalformedLLMOutput = errors.New("malformed llm output")
	// ErrIndexCorrupted signals that a similarity index and its metadata
	// table diverged. This is a broken invariant, not a runtime condition;
	// callers should treat it as fatal.
	ErrIndexCorrupted = errors.New("index corrupted: slot/metadata mismatch")
)
