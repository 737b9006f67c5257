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

// OutboundPostgres persists outbound sessions in PostgreSQL. The state
// column is text; profile and document snapshots are JSONB.
type OutboundPostgres struct {
	db *sql.DB
}

// NewOutboundPostgres constructs a PostgreSQL-backed outbound store.
func NewOutboundPostgres(db *sql.DB) *OutboundPostgres {
	return &OutboundPostgres{db: db}
}

// Migrate creates the session tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS transfer_sessions (
	transfer_id TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	operator_id TEXT NOT NULL,
	state       TEXT NOT NULL,
	profile     JSONB,
	documents   JSONB,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS incoming_transfer_sessions (
	transfer_id TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	password    TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	state       TEXT NOT NULL,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS incoming_transfer_sessions_user_idx
	ON incoming_transfer_sessions (user_id);`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate session tables: %w", err)
	}
	return nil
}

func (s *OutboundPostgres) Create(ctx context.Context, sess *models.OutboundSession) error {
	profile, documents, err := marshalOutbound(sess)
	if err != nil {
		return err
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transfer_sessions
			(transfer_id, user_id, operator_id, state, profile, documents, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.TransferID, sess.UserID, sess.OperatorID, string(sess.State),
		profile, documents, sess.LastError, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create outbound session: %w", err)
	}
	return nil
}

func (s *OutboundPostgres) Get(ctx context.Context, transferID string) (*models.OutboundSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT transfer_id, user_id, operator_id, state, profile, documents, last_error, created_at, updated_at
		FROM transfer_sessions WHERE transfer_id = $1`, transferID)
	return scanOutbound(row)
}

func (s *OutboundPostgres) Update(ctx context.Context, sess *models.OutboundSession, expected state.State) error {
	profile, documents, err := marshalOutbound(sess)
	if err != nil {
		return err
	}
	sess.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_sessions
		SET state = $2, profile = $3, documents = $4, last_error = $5, updated_at = $6
		WHERE transfer_id = $1 AND state = $7`,
		sess.TransferID, string(sess.State), profile, documents,
		sess.LastError, sess.UpdatedAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update outbound session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbound session: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, sess.TransferID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleTransition
	}
	return nil
}

func (s *OutboundPostgres) DeleteStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transfer_sessions
		WHERE updated_at < $1 AND state NOT IN ($2, $3)`,
		olderThan, string(state.Delivered), string(state.Failed),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale outbound sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale outbound sessions: %w", err)
	}
	return int(affected), nil
}

func marshalOutbound(sess *models.OutboundSession) (profile, documents []byte, err error) {
	if sess.User != nil {
		profile, err = json.Marshal(sess.User)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal profile: %w", err)
		}
	}
	if sess.Documents != nil {
		documents, err = json.Marshal(sess.Documents)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal documents: %w", err)
		}
	}
	return profile, documents, nil
}

func scanOutbound(row *sql.Row) (*models.OutboundSession, error) {
	var (
		sess      models.OutboundSession
		st        string
		profile   []byte
		documents []byte
	)
	err := row.Scan(&sess.TransferID, &sess.UserID, &sess.OperatorID, &st,
		&profile, &documents, &sess.LastError, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan outbound session: %w", err)
	}
	sess.State = state.State(st)
	if len(profile) > 0 {
		sess.User = &models.CitizenProfile{}
		if err := json.Unmarshal(profile, sess.User); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &sess.Documents); err != nil {
			return nil, fmt.Errorf("unmarshal documents: %w", err)
		}
	}
	return &sess, nil
}
