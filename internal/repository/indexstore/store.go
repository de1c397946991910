// Package indexstore pairs one flat similarity index per DocType with a
// metadata table in SQLite. The vector_slot column is the only join key
// between an index and its table; the two must never diverge silently.
package indexstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	// SQLite driver for the metadata store.
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/meetdex/internal/domain"
	"github.com/kailas-cloud/meetdex/internal/index"
)

// Config holds index store settings.
type Config struct {
	// Dir is the directory holding one index file per DocType.
	Dir string
	// DBPath is the SQLite metadata database path.
	DBPath string
	// Dim is the embedding dimension, fixed for the process lifetime.
	Dim int
}

// Store owns the per-DocType flat indices and their metadata tables.
// Writes to one DocType are serialized internally; reads run concurrently
// with each other but never with a write to the same DocType.
type Store struct {
	db       *sql.DB
	dir      string
	dim      int
	embedder domain.BatchEmbedder
	logger   *zap.Logger

	locks   map[domain.DocType]*sync.RWMutex
	indices map[domain.DocType]*index.Flat
}

// New opens the metadata database, creates missing tables, and loads or
// creates one index file per DocType. The embedder is only used by
// RebuildIndex. Fails loudly when an index and its table disagree on slots.
func New(cfg Config, embedder domain.BatchEmbedder, logger *zap.Logger) (*Store, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dim)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	s := &Store{
		db:       db,
		dir:      cfg.Dir,
		dim:      cfg.Dim,
		embedder: embedder,
		logger:   logger,
		locks:    make(map[domain.DocType]*sync.RWMutex),
		indices:  make(map[domain.DocType]*index.Flat),
	}

	for _, dt := range domain.AllDocTypes() {
		s.locks[dt] = &sync.RWMutex{}
		if err = s.initDocType(dt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) initDocType(dt domain.DocType) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc_type TEXT NOT NULL,
		org_id TEXT NOT NULL,
		meeting_id TEXT NOT NULL,
		source_id TEXT,
		text TEXT NOT NULL,
		vector_slot INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`, tableName(dt))
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create table for %s: %w", dt, err)
	}
	for _, col := range []string{"org_id", "meeting_id", "vector_slot"} {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			tableName(dt), col, tableName(dt), col)
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", dt, col, err)
		}
	}

	path := s.indexPath(dt)
	if _, err := os.Stat(path); err == nil {
		flat, err := index.LoadFlat(path)
		if err != nil {
			return fmt.Errorf("load index for %s: %w", dt, err)
		}
		if flat.Dim() != s.dim {
			return fmt.Errorf("index for %s has dimension %d, service configured for %d",
				dt, flat.Dim(), s.dim)
		}
		s.indices[dt] = flat
	} else {
		s.indices[dt] = index.NewFlat(s.dim)
	}

	return s.verifySlots(dt)
}

// verifySlots checks that every metadata row points inside the index.
func (s *Store) verifySlots(dt domain.DocType) error {
	var count int
	var maxSlot sql.NullInt64
	row := s.db.QueryRow(fmt.Sprintf(
		"SELECT COUNT(*), MAX(vector_slot) FROM %s", tableName(dt)))
	if err := row.Scan(&count, &maxSlot); err != nil {
		return fmt.Errorf("verify slots for %s: %w", dt, err)
	}
	if count > 0 && maxSlot.Valid && int(maxSlot.Int64) >= s.indices[dt].Len() {
		return fmt.Errorf("%w: %s has slot %d but index holds %d vectors",
			domain.ErrIndexCorrupted, dt, maxSlot.Int64, s.indices[dt].Len())
	}
	return nil
}

// AddDocuments appends documents and their vectors to one DocType.
// Pairs whose vector is empty or has the wrong dimension are dropped; the
// rest are L2-normalized and appended in input order starting at the index's
// current size. The index file is persisted before returning. Returns the
// ids actually inserted.
func (s *Store) AddDocuments(
	ctx context.Context, docType domain.DocType,
	docs []domain.Document, vectors [][]float32,
) ([]string, error) {
	if !docType.Valid() {
		return nil, fmt.Errorf("add documents: unknown doc type %q", docType)
	}
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("documents (%d) and vectors (%d) must match", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var validDocs []domain.Document
	var validVecs [][]float32
	for i, v := range vectors {
		if len(v) != s.dim {
			s.logger.Warn("Dropping document with invalid vector",
				zap.String("doc_type", string(docType)),
				zap.String("id", docs[i].ID),
				zap.Int("dim", len(v)),
			)
			continue
		}
		validDocs = append(validDocs, docs[i])
		validVecs = append(validVecs, index.Normalize(append([]float32(nil), v...)))
	}
	if len(validDocs) == 0 {
		return nil, nil
	}

	mu := s.locks[docType]
	mu.Lock()
	defer mu.Unlock()

	flat := s.indices[docType]
	start := flat.Len()
	if err := flat.Add(validVecs); err != nil {
		return nil, fmt.Errorf("append vectors for %s: %w", docType, err)
	}

	ids, err := s.insertRows(ctx, docType, validDocs, start)
	if err != nil {
		// Keep the index and table in lockstep: roll the append back.
		flat.Truncate(start)
		return nil, err
	}

	if err := flat.Save(s.indexPath(docType)); err != nil {
		return nil, fmt.Errorf("persist index for %s: %w", docType, err)
	}
	return ids, nil
}

func (s *Store) insertRows(
	ctx context.Context, docType domain.DocType,
	docs []domain.Document, startSlot int,
) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(id, doc_type, org_id, meeting_id, source_id, text, vector_slot)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, tableName(docType))

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		if _, err = tx.ExecContext(ctx, stmt,
			doc.ID, string(docType), doc.OrgID, doc.MeetingID,
			doc.SourceID, doc.Text, startSlot+i,
		); err != nil {
			return nil, fmt.Errorf("insert metadata row %s: %w", doc.ID, err)
		}
		ids = append(ids, doc.ID)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit metadata rows: %w", err)
	}
	return ids, nil
}

// Search returns up to k hits for the query vector, highest score first.
// With an org filter the index is over-fetched by a factor of five (the
// similarity index cannot filter by metadata) and filtered in SQL.
// Rows deleted from metadata are skipped even though their vectors remain.
func (s *Store) Search(
	ctx context.Context, docType domain.DocType,
	query []float32, k int, orgID string,
) ([]domain.SearchHit, error) {
	if !docType.Valid() {
		return nil, fmt.Errorf("search: unknown doc type %q", docType)
	}
	if k <= 0 {
		return nil, fmt.Errorf("search: k must be positive, got %d", k)
	}

	mu := s.locks[docType]
	mu.RLock()
	defer mu.RUnlock()

	flat := s.indices[docType]
	if flat.Len() == 0 {
		return nil, nil
	}

	searchK := k
	if orgID != "" {
		searchK = k * 5
	}
	if searchK > flat.Len() {
		searchK = flat.Len()
	}

	q := index.Normalize(append([]float32(nil), query...))
	slots, scores, err := flat.Search(q, searchK)
	if err != nil {
		return nil, fmt.Errorf("search %s index: %w", docType, err)
	}

	hits := make([]domain.SearchHit, 0, k)
	for i, slot := range slots {
		if slot < 0 {
			continue
		}
		doc, ok, err := s.lookupSlot(ctx, docType, slot, orgID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Document: doc,
			Score:    float64(scores[i]),
			DocType:  docType,
		})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

func (s *Store) lookupSlot(
	ctx context.Context, docType domain.DocType, slot int, orgID string,
) (domain.Document, bool, error) {
	query := fmt.Sprintf(
		"SELECT id, org_id, meeting_id, source_id, text FROM %s WHERE vector_slot = ?",
		tableName(docType))
	args := []any{slot}
	if orgID != "" {
		query += " AND org_id = ?"
		args = append(args, orgID)
	}

	var doc domain.Document
	var sourceID sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&doc.ID, &doc.OrgID, &doc.MeetingID, &sourceID, &doc.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("lookup slot %d in %s: %w", slot, docType, err)
	}
	doc.SourceID = sourceID.String
	return doc, true, nil
}

// DeleteByMeeting removes metadata rows for the meeting across every
// DocType. Vectors stay in the indices (flat indices cannot delete in
// place); space is reclaimed only by RebuildIndex. Returns rows deleted per
// DocType.
func (s *Store) DeleteByMeeting(ctx context.Context, meetingID string) (map[domain.DocType]int, error) {
	deleted := make(map[domain.DocType]int, len(domain.AllDocTypes()))
	for _, dt := range domain.AllDocTypes() {
		mu := s.locks[dt]
		mu.Lock()
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE meeting_id = ?", tableName(dt)), meetingID)
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("delete %s rows for meeting %s: %w", dt, meetingID, err)
		}
		n, _ := res.RowsAffected()
		deleted[dt] = int(n)
	}
	return deleted, nil
}

// RebuildIndex re-embeds every remaining metadata row for one DocType and
// writes a fresh index, reassigning slots sequentially. This is the only way
// to reclaim space after deletions. Rows whose text no longer embeds to a
// valid vector are dropped. Run for one DocType at a time.
func (s *Store) RebuildIndex(ctx context.Context, docType domain.DocType) error {
	if !docType.Valid() {
		return fmt.Errorf("rebuild: unknown doc type %q", docType)
	}
	if s.embedder == nil {
		return fmt.Errorf("rebuild %s: no embedder configured", docType)
	}

	mu := s.locks[docType]
	mu.Lock()
	defer mu.Unlock()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, text FROM %s ORDER BY vector_slot", tableName(docType)))
	if err != nil {
		return fmt.Errorf("rebuild %s: read rows: %w", docType, err)
	}
	var ids, texts []string
	for rows.Next() {
		var id, text string
		if err = rows.Scan(&id, &text); err != nil {
			rows.Close()
			return fmt.Errorf("rebuild %s: scan row: %w", docType, err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("rebuild %s: iterate rows: %w", docType, err)
	}

	fresh := index.NewFlat(s.dim)
	var kept []string
	if len(texts) > 0 {
		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("rebuild %s: re-embed: %w", docType, err)
		}
		var vecs [][]float32
		for i, v := range batch.Embeddings {
			if len(v) != s.dim {
				s.logger.Warn("Dropping row during rebuild",
					zap.String("doc_type", string(docType)),
					zap.String("id", ids[i]),
				)
				continue
			}
			vecs = append(vecs, index.Normalize(append([]float32(nil), v...)))
			kept = append(kept, ids[i])
		}
		if err = fresh.Add(vecs); err != nil {
			return fmt.Errorf("rebuild %s: fill index: %w", docType, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebuild %s: begin tx: %w", docType, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s", tableName(docType))+" WHERE id NOT IN ("+
			placeholders(len(kept))+")", toAnySlice(kept)...); err != nil {
		return fmt.Errorf("rebuild %s: prune rows: %w", docType, err)
	}
	for slot, id := range kept {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET vector_slot = ? WHERE id = ?", tableName(docType)), slot, id); err != nil {
			return fmt.Errorf("rebuild %s: reassign slot for %s: %w", docType, id, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("rebuild %s: commit: %w", docType, err)
	}

	if err = fresh.Save(s.indexPath(docType)); err != nil {
		return fmt.Errorf("rebuild %s: persist index: %w", docType, err)
	}
	s.indices[docType] = fresh
	return nil
}

// Stats reports metadata row count and index vector count per DocType.
// The counts diverge after deletions; that is expected and observable.
func (s *Store) Stats(ctx context.Context) (map[domain.DocType]domain.IndexStats, error) {
	stats := make(map[domain.DocType]domain.IndexStats, len(domain.AllDocTypes()))
	for _, dt := range domain.AllDocTypes() {
		mu := s.locks[dt]
		mu.RLock()
		var count int
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(dt))).Scan(&count)
		vectors := s.indices[dt].Len()
		mu.RUnlock()
		if err != nil {
			return nil, fmt.Errorf("count %s rows: %w", dt, err)
		}
		stats[dt] = domain.IndexStats{Documents: count, Vectors: vectors}
	}
	return stats, nil
}

// Ping checks metadata database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping metadata db: %w", err)
	}
	return nil
}

// Close releases the metadata database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) indexPath(dt domain.DocType) string {
	return filepath.Join(s.dir, string(dt)+".index")
}

func tableName(dt domain.DocType) string {
	return "documents_" + string(dt)
}

func placeholders(n int) string {
	if n == 0 {
		return "''" // match nothing; NOT IN ('') keeps all rows deletable
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
