package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists the trail in the transfer_audit table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS transfer_audit (
	id          UUID PRIMARY KEY,
	transfer_id TEXT NOT NULL,
	topic       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_audit_transfer_id_idx ON transfer_audit (transfer_id);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate transfer_audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_audit (id, transfer_id, topic, outcome, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.TransferID, event.Topic, event.Outcome, event.Detail, event.At,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTransfer(ctx context.Context, transferID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transfer_id, topic, outcome, detail, recorded_at
		FROM transfer_audit
		WHERE transfer_id = $1
		ORDER BY recorded_at`,
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.TransferID, &event.Topic, &event.Outcome, &event.Detail, &event.At); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
