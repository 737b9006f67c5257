package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

// IncomingPostgres persists incoming sessions in PostgreSQL.
type IncomingPostgres struct {
	db *sql.DB
}

// NewIncomingPostgres constructs a PostgreSQL-backed incoming store.
func NewIncomingPostgres(db *sql.DB) *IncomingPostgres {
	return &IncomingPostgres{db: db}
}

func (s *IncomingPostgres) Create(ctx context.Context, sess *models.IncomingSession) error {
	payload, err := json.Marshal(sess.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incoming_transfer_sessions
			(transfer_id, user_id, password, payload, state, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.TransferID, sess.UserID, sess.Password, payload,
		string(sess.State), sess.LastError, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create incoming session: %w", err)
	}
	return nil
}

func (s *IncomingPostgres) Get(ctx context.Context, transferID string) (*models.IncomingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT transfer_id, user_id, password, payload, state, last_error, created_at, updated_at
		FROM incoming_transfer_sessions WHERE transfer_id = $1`, transferID)
	return scanIncoming(row)
}

// GetByUserID returns the most recently updated session for a citizen. The
// confirmation link only carries the citizen id, not the transferId.
func (s *IncomingPostgres) GetByUserID(ctx context.Context, userID string) (*models.IncomingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT transfer_id, user_id, password, payload, state, last_error, created_at, updated_at
		FROM incoming_transfer_sessions
		WHERE user_id = $1 OR payload->>'id' = $1
		ORDER BY updated_at DESC
		LIMIT 1`, userID)
	return scanIncoming(row)
}

func (s *IncomingPostgres) Update(ctx context.Context, sess *models.IncomingSession, expected state.State) error {
	payload, err := json.Marshal(sess.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	sess.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE incoming_transfer_sessions
		SET user_id = $2, password = $3, payload = $4, state = $5, last_error = $6, updated_at = $7
		WHERE transfer_id = $1 AND state = $8`,
		sess.TransferID, sess.UserID, sess.Password, payload,
		string(sess.State), sess.LastError, sess.UpdatedAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update incoming session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update incoming session: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, sess.TransferID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleTransition
	}
	return nil
}

func (s *IncomingPostgres) Delete(ctx context.Context, transferID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM incoming_transfer_sessions WHERE transfer_id = $1`, transferID)
	if err != nil {
		return fmt.Errorf("delete incoming session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete incoming session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IncomingPostgres) DeleteStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM incoming_transfer_sessions
		WHERE updated_at < $1 AND state NOT IN ($2, $3, $4)`,
		olderThan, string(state.Confirmed), string(state.Rejected), string(state.Failed),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale incoming sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale incoming sessions: %w", err)
	}
	return int(affected), nil
}

func scanIncoming(row *sql.Row) (*models.IncomingSession, error) {
	var (
		sess    models.IncomingSession
		st      string
		payload []byte
	)
	err := row.Scan(&sess.TransferID, &sess.UserID, &sess.Password, &payload,
		&st, &sess.LastError, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan incoming session: %w", err)
	}
	sess.State = state.State(st)
	if err := json.Unmarshal(payload, &sess.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &sess, nil
}
