package domain

// SourceReference points at a document that contributed to an answer.
type SourceReference struct {
	MeetingID    string  `json:"meeting_id"`
	MeetingTitle string  `json:"meeting_title"`
	DocType      DocType `json:"doc_type"`
	Snippet      string  `json:"text_snippet"`
	Score        float64 `json:"score"`
	SourceID     string  `json:"source_id,omitempty"`
}

// SearchResult is a strategy's answer to one query. Strategy failures are
// represented here (Success=false, Error set), never as Go errors, so callers
// need no error handling around a strategy run.
type SearchResult struct {
	Answer   string            `json:"answer"`
	Sources  []SourceReference `json:"sources"`
	Strategy string            `json:"strategy_used"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Debug    map[string]any    `json:"debug_info,omitempty"`
}

// Failure builds an unsuccessful SearchResult.
func Failure(strategy, answer, reason string, debug map[string]any) SearchResult {
	return SearchResult{
		Answer:   answer,
		Sources:  []SourceReference{},
		Strategy: strategy,
		Success:  false,
		Error:    reason,
		Debug:    debug,
	}
}
