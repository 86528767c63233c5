// Package auditsqlite is the optional durable audit sink for the OAuth
// Proxy's lifecycle events (registration, authorization, token issuance,
// revocation), appended to a local SQLite database for offline inspection.
// Disabled by default; independent of the KV Store's TTL-bound session and
// token state.
package auditsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcpgateway/mcpgateway/internal/domain/oauth"
)

// Sink implements oauth.AuditSink.
var _ oauth.AuditSink = (*Sink)(nil)

// Event is a single OAuth Proxy lifecycle event appended to the audit log.
type Event struct {
	Type      string // "client_registered", "authorize_attempt", "token_issued", "token_revoked", "token_exchange_failed"
	ClientID  string
	UserID    string
	Detail    string
	Success   bool
	Timestamp time.Time
}

// Sink writes Events to a SQLite database, guarded by an advisory file lock
// so a rolling restart never leaves two processes writing to the same file.
type Sink struct {
	db       *sql.DB
	lockFile *os.File
	mu       sync.Mutex
}

// Open creates (if needed) and opens the SQLite database at dbPath,
// acquiring an exclusive advisory lock on dbPath+".lock" for the lifetime
// of the returned Sink.
func Open(dbPath string) (*Sink, error) {
	lockFile, err := os.OpenFile(dbPath+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("auditsqlite: open lock file: %w", err)
	}
	if err := flockLock(lockFile.Fd()); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("auditsqlite: acquire lock: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		flockUnlock(lockFile.Fd())
		lockFile.Close()
		return nil, fmt.Errorf("auditsqlite: open database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS oauth_audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		client_id TEXT,
		user_id TEXT,
		detail TEXT,
		success BOOLEAN NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_oauth_audit_timestamp ON oauth_audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_oauth_audit_client_id ON oauth_audit_events(client_id);
	CREATE INDEX IF NOT EXISTS idx_oauth_audit_event_type ON oauth_audit_events(event_type);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		flockUnlock(lockFile.Fd())
		lockFile.Close()
		return nil, fmt.Errorf("auditsqlite: create schema: %w", err)
	}

	return &Sink{db: db, lockFile: lockFile}, nil
}

// Record appends ev to the audit log. Safe for concurrent use.
func (s *Sink) Record(ctx context.Context, ev Event) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_audit_events (timestamp, event_type, client_id, user_id, detail, success)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Timestamp, ev.Type, ev.ClientID, ev.UserID, ev.Detail, ev.Success)
	if err != nil {
		return fmt.Errorf("auditsqlite: insert event: %w", err)
	}
	return nil
}

// RecordEvent builds an Event from scalar fields and appends it, satisfying
// the oauth package's AuditSink port without that package needing to import
// this one.
func (s *Sink) RecordEvent(ctx context.Context, eventType, clientID, userID, detail string, success bool) error {
	return s.Record(ctx, Event{Type: eventType, ClientID: clientID, UserID: userID, Detail: detail, Success: success})
}

// Recent returns the most recent limit events, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, event_type, client_id, user_id, detail, success
		FROM oauth_audit_events
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("auditsqlite: query recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var clientID, userID, detail sql.NullString
		if err := rows.Scan(&ev.Timestamp, &ev.Type, &clientID, &userID, &detail, &ev.Success); err != nil {
			return nil, fmt.Errorf("auditsqlite: scan event: %w", err)
		}
		ev.ClientID = clientID.String
		ev.UserID = userID.String
		ev.Detail = detail.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the SQLite connection and the advisory file lock.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dbErr := s.db.Close()
	lockErr := flockUnlock(s.lockFile.Fd())
	closeErr := s.lockFile.Close()

	if dbErr != nil {
		return dbErr
	}
	if lockErr != nil {
		return lockErr
	}
	return closeErr
}
