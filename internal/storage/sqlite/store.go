// Package sqlite keeps the pending reservation slot in a local SQLite file.
// It is the default for the operator CLI, where one file stands in for one
// browser profile.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// LocalClient is the scope used when a file belongs to a single profile.
const LocalClient = "local"

type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// A single writer keeps writes serialized without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS pending_reservations (
			client_id TEXT PRIMARY KEY,
			session_reference TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservation_errors (
			client_id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

// Scope returns the slot of one client.
func (s *DB) Scope(clientID string) intent.Store {
	return &Store{db: s.db, clientID: clientID}
}

// Store is the slot of a single client within the database.
type Store struct {
	db       *sql.DB
	clientID string
}

func (s *Store) Save(ctx context.Context, in intent.Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode reservation intent: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_reservations (client_id, session_reference, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			session_reference = excluded.session_reference,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, s.clientID, in.SessionReference, string(payload), in.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: failed to save pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	log.Printf("[SQLite] Saved pending reservation %s for client %s", in.SessionReference, s.clientID)
	return nil
}

func (s *Store) Load(ctx context.Context) (intent.Intent, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM pending_reservations WHERE client_id = ?`, s.clientID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return intent.Intent{}, false, nil
	}
	if err != nil {
		return intent.Intent{}, false, fmt.Errorf("%w: failed to load pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	var in intent.Intent
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return intent.Intent{}, false, fmt.Errorf("failed to decode pending reservation: %w", err)
	}
	return in, true, nil
}

func (s *Store) Clear(ctx context.Context, sessionReference string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_reservations WHERE client_id = ? AND session_reference = ?`,
		s.clientID, sessionReference,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to clear pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[SQLite] Cleared pending reservation %s for client %s", sessionReference, s.clientID)
	}
	return nil
}

func (s *Store) RecordError(ctx context.Context, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservation_errors (client_id, message, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			message = excluded.message,
			recorded_at = excluded.recorded_at
	`, s.clientID, message, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: failed to record reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) TakeError(ctx context.Context) (string, bool, error) {
	var message string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM reservation_errors WHERE client_id = ? RETURNING message`, s.clientID,
	).Scan(&message)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to take reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return message, true, nil
}
