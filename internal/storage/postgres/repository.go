package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// Repository is a thin wrapper around *sql.DB intended for dependency injection.
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// Scope returns the slot of one browser, identified by its client id.
func (r *Repository) Scope(clientID string) intent.Store {
	return &clientSlot{repo: r, clientID: clientID}
}

type clientSlot struct {
	repo     *Repository
	clientID string
}

func (s *clientSlot) db() (*sql.DB, error) {
	if s.repo == nil || s.repo.DB == nil {
		return nil, fmt.Errorf("%w: database not initialized", intent.ErrStoreUnavailable)
	}
	return s.repo.DB, nil
}

// Save upserts the single pending reservation of the client.
func (s *clientSlot) Save(ctx context.Context, in intent.Intent) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode reservation intent: %w", err)
	}
	query := `
		INSERT INTO pending_reservations (client_id, session_reference, item_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id) DO UPDATE SET
			session_reference = EXCLUDED.session_reference,
			item_id = EXCLUDED.item_id,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.ExecContext(ctx, query, s.clientID, in.SessionReference, in.ItemID, string(payload), in.CreatedAt); err != nil {
		return fmt.Errorf("%w: failed to save pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	log.Printf("[DB] Saved pending reservation %s for client %s", in.SessionReference, s.clientID)
	return nil
}

func (s *clientSlot) Load(ctx context.Context) (intent.Intent, bool, error) {
	db, err := s.db()
	if err != nil {
		return intent.Intent{}, false, err
	}
	var payload string
	err = db.QueryRowContext(ctx, `SELECT payload FROM pending_reservations WHERE client_id = $1`, s.clientID).Scan(&payload)
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

func (s *clientSlot) Clear(ctx context.Context, sessionReference string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM pending_reservations WHERE client_id = $1 AND session_reference = $2`,
		s.clientID, sessionReference,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to clear pending reservation: %w", intent.ErrStoreUnavailable, err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		log.Printf("[DB] Cleared pending reservation %s for client %s", sessionReference, s.clientID)
	}
	return nil
}

func (s *clientSlot) RecordError(ctx context.Context, message string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reservation_errors (client_id, message)
		VALUES ($1, $2)
		ON CONFLICT (client_id) DO UPDATE SET
			message = EXCLUDED.message,
			recorded_at = CURRENT_TIMESTAMP
	`
	if _, err := db.ExecContext(ctx, query, s.clientID, message); err != nil {
		return fmt.Errorf("%w: failed to record reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return nil
}

// TakeError deletes and returns the marker in one statement so two loads can
// never both observe it.
func (s *clientSlot) TakeError(ctx context.Context) (string, bool, error) {
	db, err := s.db()
	if err != nil {
		return "", false, err
	}
	var message string
	err = db.QueryRowContext(ctx, `DELETE FROM reservation_errors WHERE client_id = $1 RETURNING message`, s.clientID).Scan(&message)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to take reservation error: %w", intent.ErrStoreUnavailable, err)
	}
	return message, true, nil
}
