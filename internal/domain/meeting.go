package domain

import "time"

// Meeting is the persisted meeting record. The retrieval core reads meetings
// through MeetingReader; writes belong to the surrounding CRUD layer.
type Meeting struct {
	ID         string
	OrgID      string
	Title      string
	Transcript string
	CreatedAt  time.Time
}

// MeetingState is the latest versioned state of a meeting: its generated
// notes and extracted workflow graphs.
type MeetingState struct {
	MeetingID      string
	Version        int
	MeetingSummary string
	Workflows      []Workflow
}

// Workflow is a process graph extracted from a meeting.
type Workflow struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Nodes []WorkflowNode `json:"nodes"`
	Edges []WorkflowEdge `json:"edges"`
}

// WorkflowNode is one step in a workflow graph. Type is "step" or "decision".
type WorkflowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// WorkflowEdge connects two workflow nodes.
type WorkflowEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
