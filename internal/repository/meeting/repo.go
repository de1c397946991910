// Package meeting persists meetings and their versioned states in SQLite.
// The retrieval core only reads; writes exist for seeding and tests.
package meeting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

// Repo stores meetings and meeting states.
type Repo struct {
	db *sql.DB
}

// New opens (and migrates) the meeting database at path.
func New(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open meeting db: %w", err)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS meeting_states (
			meeting_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			meeting_summary TEXT NOT NULL DEFAULT '',
			workflows TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (meeting_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_org ON meetings(org_id)`,
	}
	for _, stmt := range ddl {
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate meeting db: %w", err)
		}
	}
	return &Repo{db: db}, nil
}

// GetMeeting returns one meeting or domain.ErrMeetingNotFound.
func (r *Repo) GetMeeting(ctx context.Context, id string) (domain.Meeting, error) {
	var m domain.Meeting
	var created sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT id, org_id, title, transcript, created_at FROM meetings WHERE id = ?", id,
	).Scan(&m.ID, &m.OrgID, &m.Title, &m.Transcript, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, fmt.Errorf("meeting %s: %w", id, domain.ErrMeetingNotFound)
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("get meeting %s: %w", id, err)
	}
	m.CreatedAt = created.Time
	return m, nil
}

// GetLatestState returns the highest-version state for a meeting, or
// domain.ErrStateNotFound when none exists.
func (r *Repo) GetLatestState(ctx context.Context, meetingID string) (domain.MeetingState, error) {
	var st domain.MeetingState
	var workflowsJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT meeting_id, version, meeting_summary, workflows
		 FROM meeting_states WHERE meeting_id = ?
		 ORDER BY version DESC LIMIT 1`, meetingID,
	).Scan(&st.MeetingID, &st.Version, &st.MeetingSummary, &workflowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MeetingState{}, fmt.Errorf("meeting %s: %w", meetingID, domain.ErrStateNotFound)
	}
	if err != nil {
		return domain.MeetingState{}, fmt.Errorf("get latest state for %s: %w", meetingID, err)
	}
	if err = json.Unmarshal([]byte(workflowsJSON), &st.Workflows); err != nil {
		return domain.MeetingState{}, fmt.Errorf("decode workflows for %s: %w", meetingID, err)
	}
	return st, nil
}

// SaveMeeting inserts or replaces a meeting record.
func (r *Repo) SaveMeeting(ctx context.Context, m domain.Meeting) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meetings (id, org_id, title, transcript, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.OrgID, m.Title, m.Transcript, created)
	if err != nil {
		return fmt.Errorf("save meeting %s: %w", m.ID, err)
	}
	return nil
}

// SaveState appends a new state version for a meeting. Version 0 means
// "next": the repo assigns latest+1.
func (r *Repo) SaveState(ctx context.Context, st domain.MeetingState) error {
	workflows, err := json.Marshal(st.Workflows)
	if err != nil {
		return fmt.Errorf("encode workflows for %s: %w", st.MeetingID, err)
	}

	version := st.Version
	if version == 0 {
		var latest sql.NullInt64
		if err = r.db.QueryRowContext(ctx,
			"SELECT MAX(version) FROM meeting_states WHERE meeting_id = ?", st.MeetingID,
		).Scan(&latest); err != nil {
			return fmt.Errorf("next version for %s: %w", st.MeetingID, err)
		}
		version = int(latest.Int64) + 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meeting_states (meeting_id, version, meeting_summary, workflows)
		 VALUES (?, ?, ?, ?)`,
		st.MeetingID, version, st.MeetingSummary, string(workflows))
	if err != nil {
		return fmt.Errorf("save state for %s: %w", st.MeetingID, err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping meeting db: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}
