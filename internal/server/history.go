package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryRecord is one resolved share, kept for the /api/history endpoint.
type HistoryRecord struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	Text       string `json:"text"`
	Status     string `json:"status"` // "completed" or "failed"
	Segments   int    `json:"segments"`
	ResolvedAt int64  `json:"resolved_at"` // Unix timestamp
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// HistoryDB manages the SQLite database of resolve history.
type HistoryDB struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenHistoryDB opens (and creates, if needed) the history database at path.
// The parent directory is created first; sqlite cannot open a file in a
// missing directory.
func OpenHistoryDB(path string) (*HistoryDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS resolve_history (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			segments INTEGER DEFAULT 0,
			resolved_at INTEGER NOT NULL,
			duration_ms INTEGER DEFAULT 0,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_resolved_at ON resolve_history(resolved_at DESC);
		CREATE INDEX IF NOT EXISTS idx_platform ON resolve_history(platform);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return &HistoryDB{db: db}, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Record saves one resolve outcome.
func (h *HistoryDB) Record(rec HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.ResolvedAt == 0 {
		rec.ResolvedAt = time.Now().Unix()
	}
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO resolve_history
		(id, platform, text, status, segments, resolved_at, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Platform,
		rec.Text,
		rec.Status,
		rec.Segments,
		rec.ResolvedAt,
		rec.DurationMS,
		rec.Error,
	)
	return err
}

// List returns resolve history with pagination, newest first.
func (h *HistoryDB) List(limit, offset int) ([]HistoryRecord, int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var total int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM resolve_history`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := h.db.Query(`
		SELECT id, platform, text, status, segments, resolved_at, duration_ms, COALESCE(error_message, '')
		FROM resolve_history
		ORDER BY resolved_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.Platform, &rec.Text, &rec.Status,
			&rec.Segments, &rec.ResolvedAt, &rec.DurationMS, &rec.Error); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}
