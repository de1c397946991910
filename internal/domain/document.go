package domain

// Document is a unit of indexed content. ID is unique within a DocType;
// SourceID disambiguates sub-entities of a meeting (chunk index, workflow id).
type Document struct {
	ID        string
	OrgID     string
	MeetingID string
	Text      string
	SourceID  string
}

// SearchHit is a document returned by the index store with its raw
// inner-product similarity score.
type SearchHit struct {
	Document Document
	Score    float64
	DocType  DocType
}

// CanonicalDocID builds the doc id form used by the eval harness:
// "<doc_type>:<meeting_id>:<source_id-or-empty>".
func CanonicalDocID(docType DocType, meetingID, sourceID string) string {
	return string(docType) + ":" + meetingID + ":" + sourceID
}

// IndexStats describes one DocType's store state. Documents counts metadata
// rows; Vectors counts entries in the similarity index. They diverge after
// deletions until the index is rebuilt.
type IndexStats struct {
	Documents int `json:"document_count"`
	Vectors   int `json:"index_size"`
}
