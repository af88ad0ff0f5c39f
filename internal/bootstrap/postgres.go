package bootstrap

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// EnsureSchema creates the handoff table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bootstrap_handoffs (
			session_id  text PRIMARY KEY,
			message     text NOT NULL,
			mode        text NOT NULL DEFAULT '',
			created_at  timestamptz NOT NULL DEFAULT now(),
			consumed_at timestamptz
		)
	`)
	return errors.Wrap(err, "bootstrap: ensure schema")
}

func (s *postgresStore) Put(ctx context.Context, sessionID string, h Handoff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bootstrap_handoffs (session_id, message, mode)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id)
		DO UPDATE SET message = $2, mode = $3, consumed_at = NULL
	`, sessionID, h.Message, h.Mode)
	if err != nil {
		return errors.Wrap(err, "bootstrap: put handoff")
	}

	// Consumed rows only matter for the remount window; old ones can go.
	// Pruning is best effort, the handoff itself is already stored.
	_, _ = s.db.ExecContext(ctx, `
		DELETE FROM bootstrap_handoffs
		WHERE consumed_at IS NOT NULL AND consumed_at < now() - interval '1 day'
	`)
	return nil
}

// Take marks the handoff consumed in the same statement that reads it, so a
// remount racing the first read can never trigger a second send. The row
// stays behind (until pruned) so the duplicate delivery is ignored, not
// resent.
func (s *postgresStore) Take(ctx context.Context, sessionID string) (*Handoff, error) {
	var h Handoff
	err := s.db.QueryRowContext(ctx, `
		UPDATE bootstrap_handoffs
		SET consumed_at = now()
		WHERE session_id = $1 AND consumed_at IS NULL
		RETURNING message, mode
	`, sessionID).Scan(&h.Message, &h.Mode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap: take handoff")
	}
	return &h, nil
}
