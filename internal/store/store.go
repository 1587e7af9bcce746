// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists parsed documents, merge sessions, and fusion
// records in a SQLite database. Parsed documents are cached by the
// SHA-256 of their raw text so re-running parse on the same OCR output
// is free.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/checklist-fuser/pkg/types"
)

const dbFile = "fuser.db"

// ErrNotFound means the requested session or document is not stored.
var ErrNotFound = errors.New("not found in store")

// Store manages the checklist-fuser SQLite database.
type Store struct {
	db *sql.DB
}

// HashText returns the content hash used to key the document cache.
func HashText(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewStore opens or creates the database at dataDir/fuser.db, creating
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			hash TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			item_count INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			doc1_hash TEXT NOT NULL REFERENCES documents(hash),
			doc2_hash TEXT NOT NULL REFERENCES documents(hash),
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			analysis_started_at TEXT,
			analysis_ended_at TEXT,
			completed_at TEXT,
			stats TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fusion_records (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			fusion_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (session_id, fusion_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_session ON fusion_records(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveDocument caches a parsed document under its content hash.
// Saving the same hash again overwrites the cached copy.
func (s *Store) SaveDocument(ctx context.Context, hash string, doc types.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (hash, filename, item_count, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET
			filename=excluded.filename, item_count=excluded.item_count,
			content=excluded.content`,
		hash, doc.Filename, doc.ItemCount(), string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", hash, err)
	}
	return nil
}

// LoadCachedDocument returns the cached parse for a content hash, or
// nil when the hash has never been parsed.
func (s *Store) LoadCachedDocument(ctx context.Context, hash string) (*types.Document, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM documents WHERE hash = ?`, hash,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", hash, err)
	}
	var doc types.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("decoding cached document %s: %w", hash, err)
	}
	return &doc, nil
}

// DocumentInfo summarizes one cached document.
type DocumentInfo struct {
	Hash      string
	Filename  string
	ItemCount int
	CreatedAt time.Time
}

// ListDocuments returns the document cache contents, most recent first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, filename, item_count, created_at FROM documents
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var createdAt string
		if err := rows.Scan(&info.Hash, &info.Filename, &info.ItemCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		info.CreatedAt = parseTime(createdAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// CreateSession stores a new session. Both document hashes must
// already be cached.
func (s *Store) CreateSession(ctx context.Context, sess types.Session) error {
	stats, err := json.Marshal(sess.Stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, doc1_hash, doc2_hash, status, created_at,
			analysis_started_at, analysis_ended_at, completed_at, stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Doc1Hash, sess.Doc2Hash, string(sess.Status),
		formatTime(sess.CreatedAt), formatTime(sess.AnalysisStartedAt),
		formatTime(sess.AnalysisEndedAt), formatTime(sess.CompletedAt), string(stats),
	)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

// UpdateSession rewrites a session's status, timestamps, and stats.
func (s *Store) UpdateSession(ctx context.Context, sess types.Session) error {
	stats, err := json.Marshal(sess.Stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name=?, status=?, analysis_started_at=?,
			analysis_ended_at=?, completed_at=?, stats=?
		 WHERE id=?`,
		sess.Name, string(sess.Status), formatTime(sess.AnalysisStartedAt),
		formatTime(sess.AnalysisEndedAt), formatTime(sess.CompletedAt),
		string(stats), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, sess.ID)
	}
	return nil
}

// GetSession loads one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, doc1_hash, doc2_hash, status, created_at,
			analysis_started_at, analysis_ended_at, completed_at, stats
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recent first.
func (s *Store) ListSessions(ctx context.Context) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, doc1_hash, doc2_hash, status, created_at,
			analysis_started_at, analysis_ended_at, completed_at, stats
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// PersistRecord upserts one fusion record for a session.
func (s *Store) PersistRecord(ctx context.Context, sessionID string, rec types.FusionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.FusionID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fusion_records (session_id, fusion_id, kind, status, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, fusion_id) DO UPDATE SET
			kind=excluded.kind, status=excluded.status,
			payload=excluded.payload, updated_at=excluded.updated_at`,
		sessionID, rec.FusionID, string(rec.Kind), string(rec.Status),
		string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persisting record %s: %w", rec.FusionID, err)
	}
	return nil
}

// SaveRecords replaces a session's records in one transaction. Used
// after engine operations so the stored set always matches the engine,
// including records removed by an undo.
func (s *Store) SaveRecords(ctx context.Context, sessionID string, records []types.FusionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fusion_records WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fusion_records (session_id, fusion_id, kind, status, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.FusionID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID, rec.FusionID, string(rec.Kind), string(rec.Status),
			string(payload), now,
		); err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.FusionID, err)
		}
	}
	return tx.Commit()
}

// LoadRecords returns a session's fusion records in insertion order.
func (s *Store) LoadRecords(ctx context.Context, sessionID string) ([]types.FusionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM fusion_records WHERE session_id = ? ORDER BY rowid`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading records for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []types.FusionRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var rec types.FusionRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (types.Session, error) {
	var sess types.Session
	var status, createdAt, stats string
	var started, ended, completed sql.NullString
	err := row.Scan(&sess.ID, &sess.Name, &sess.Doc1Hash, &sess.Doc2Hash,
		&status, &createdAt, &started, &ended, &completed, &stats)
	if err != nil {
		return types.Session{}, err
	}
	sess.Status = types.SessionStatus(status)
	sess.CreatedAt = parseTime(createdAt)
	sess.AnalysisStartedAt = parseTime(started.String)
	sess.AnalysisEndedAt = parseTime(ended.String)
	sess.CompletedAt = parseTime(completed.String)
	if err := json.Unmarshal([]byte(stats), &sess.Stats); err != nil {
		return types.Session{}, fmt.Errorf("decoding stats: %w", err)
	}
	return sess, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
