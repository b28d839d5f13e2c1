// Package store persists wire records per topic in a local sqlite archive.
// The archive backs the historical query path: every record a node sends or
// receives is appended, and a query replays them in insertion order. It
// also supports erasure-coded snapshots for redistributing a topic's
// history across store nodes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrClosed       = errors.New("store: archive closed")
	ErrEmptyPayload = errors.New("store: empty payload")
)

// Archive is a local per-topic record log.
type Archive struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewArchive opens (or creates) the archive database at path. Use
// ":memory:" for an ephemeral archive.
func NewArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			topic       TEXT NOT NULL,
			payload     BLOB NOT NULL,
			received_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_topic ON records(topic, id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Append stores one wire record for the topic.
func (a *Archive) Append(topic string, payload []byte, receivedAt int64) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	_, err := a.db.Exec(
		`INSERT INTO records (topic, payload, received_at) VALUES (?, ?, ?)`,
		topic, payload, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Replay streams every stored record for the topic to onRecord in insertion
// order. Implements the transport history provider.
func (a *Archive) Replay(ctx context.Context, topic string, onRecord func(payload []byte)) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	db := a.db
	a.mu.Unlock()

	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM records WHERE topic = ? ORDER BY id ASC`, topic)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		onRecord(payload)
	}

	return rows.Err()
}

// Count returns the number of records stored for the topic.
func (a *Archive) Count(topic string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}

	var count int
	err := a.db.QueryRow(
		`SELECT COUNT(*) FROM records WHERE topic = ?`, topic).Scan(&count)
	return count, err
}

// Prune deletes all records for the topic.
func (a *Archive) Prune(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	_, err := a.db.Exec(`DELETE FROM records WHERE topic = ?`, topic)
	return err
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

// record is the (receivedAt, payload) pair used by snapshots.
type record struct {
	receivedAt int64
	payload    []byte
}

// records returns every stored record for the topic in insertion order.
func (a *Archive) records(topic string) ([]record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	rows, err := a.db.Query(
		`SELECT payload, received_at FROM records WHERE topic = ? ORDER BY id ASC`, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.payload, &r.receivedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
