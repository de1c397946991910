package meetdex

// ChatMessage is one turn of prior conversation passed along with a query.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchRequest is one search invocation.
type SearchRequest struct {
	Query string `json:"query"`
	OrgID string `json:"org_id,omitempty"`
	// Strategy picks a registered strategy by name. Empty uses the
	// server's default.
	Strategy string `json:"strategy,omitempty"`
	// TopK bounds the number of sources in the answer. Zero uses the
	// server default.
	TopK    int           `json:"top_k,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
}

// SourceReference points at a document that contributed to an answer.
type SourceReference struct {
	MeetingID    string  `json:"meeting_id"`
	MeetingTitle string  `json:"meeting_title"`
	DocType      string  `json:"doc_type"`
	Snippet      string  `json:"text_snippet"`
	Score        float64 `json:"score"`
	SourceID     string  `json:"source_id,omitempty"`
}

// SearchResult is the strategy's answer to one query.
type SearchResult struct {
	Answer   string            `json:"answer"`
	Sources  []SourceReference `json:"sources"`
	Strategy string            `json:"strategy_used"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Debug    map[string]any    `json:"debug_info,omitempty"`
}

// StrategyInfo describes a registered search strategy.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// IndexStats describes one document type's index state.
type IndexStats struct {
	Documents int `json:"document_count"`
	Vectors   int `json:"index_size"`
}

// HealthReport is the aggregated service health.
type HealthReport struct {
	Status          string                `json:"status"`
	Checks          map[string]string     `json:"checks"`
	TotalDocuments  int                   `json:"total_documents"`
	IndexStats      map[string]IndexStats `json:"index_stats,omitempty"`
	Strategies      []string              `json:"strategies_available,omitempty"`
	DefaultStrategy string                `json:"default_strategy,omitempty"`
}

// ReindexJob identifies a queued background reindex.
type ReindexJob struct {
	JobID     string `json:"job_id"`
	MeetingID string `json:"meeting_id"`
}
