package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
)

// Event is one recorded guard block.
type Event struct {
	// ID is a generated UUID.
	ID string `json:"id"`

	// CreatedAt is when the block happened.
	CreatedAt time.Time `json:"created_at"`

	// Direction is "input" or "output".
	Direction string `json:"direction"`

	// ClientID identifies the blocked caller.
	ClientID string `json:"client_id"`

	// Path is the endpoint the request targeted.
	Path string `json:"path"`

	// ContentHash is the SHA-256 of the normalized scanned text. The text
	// itself is never stored.
	ContentHash string `json:"content_hash"`

	// Message is the human-readable block explanation.
	Message string `json:"message"`

	// FailedScanners are the scanners that rejected the content.
	FailedScanners []guard.FailedScanner `json:"failed_scanners"`
}

// HashContent derives the content hash stored in place of the text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(guard.NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// Store is the SQLite-backed audit store. Safe for concurrent use;
// database/sql serializes access through its pool, which is capped at one
// connection because SQLite supports a single writer.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS block_events (
	id              TEXT PRIMARY KEY,
	created_at      INTEGER NOT NULL,
	direction       TEXT NOT NULL,
	client_id       TEXT NOT NULL,
	path            TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	message         TEXT NOT NULL,
	failed_scanners TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_block_events_created_at ON block_events(created_at);
CREATE INDEX IF NOT EXISTS idx_block_events_client ON block_events(client_id);
`

// Open opens (creating if needed) the audit database at path. Missing
// parent directories are created.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordBlock inserts one block event. A zero ID or CreatedAt is filled in.
func (s *Store) RecordBlock(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	scanners, err := json.Marshal(event.FailedScanners)
	if err != nil {
		return fmt.Errorf("failed to encode failed scanners: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO block_events
		 (id, created_at, direction, client_id, path, content_hash, message, failed_scanners)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.CreatedAt.UnixMilli(),
		event.Direction,
		event.ClientID,
		event.Path,
		event.ContentHash,
		event.Message,
		string(scanners),
	)
	if err != nil {
		return fmt.Errorf("failed to record block event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, direction, client_id, path, content_hash, message, failed_scanners
		 FROM block_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query block events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event    Event
			created  int64
			scanners string
		)
		if err := rows.Scan(&event.ID, &created, &event.Direction, &event.ClientID,
			&event.Path, &event.ContentHash, &event.Message, &scanners); err != nil {
			return nil, fmt.Errorf("failed to scan block event: %w", err)
		}
		event.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(scanners), &event.FailedScanners); err != nil {
			return nil, fmt.Errorf("failed to decode failed scanners: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Count returns the total number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM block_events`).Scan(&n)
	return n, err
}

// PruneBefore deletes events older than cutoff and returns how many were
// removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM block_events WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune block events: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
