package domain

import "fmt"

// DocType determines which similarity index a document lives in.
type DocType string

const (
	// DocTypeTitle holds one document per meeting title.
	DocTypeTitle DocType = "meeting_title"
	// DocTypeTranscriptChunk holds fixed-size transcript chunks.
	DocTypeTranscriptChunk DocType = "transcript_chunk"
	// DocTypeWorkflowSummary holds LLM-generated workflow summaries.
	DocTypeWorkflowSummary DocType = "workflow_summary"
	// DocTypeNotes holds generated meeting notes.
	DocTypeNotes DocType = "meeting_notes"
)

// AllDocTypes lists every DocType in a stable order.
// New document types must be added here and handled at every exhaustive switch.
func AllDocTypes() []DocType {
	return []DocType{
		DocTypeTitle,
		DocTypeTranscriptChunk,
		DocTypeWorkflowSummary,
		DocTypeNotes,
	}
}

// Valid reports whether t is a known DocType.
func (t DocType) Valid() bool {
	switch t {
	case DocTypeTitle, DocTypeTranscriptChunk, DocTypeWorkflowSummary, DocTypeNotes:
		return true
	}
	return false
}

// ParseDocType converts a string into a DocType.
func ParseDocType(s string) (DocType, error) {
	t := DocType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown doc type %q", s)
	}
	return t, nil
}
