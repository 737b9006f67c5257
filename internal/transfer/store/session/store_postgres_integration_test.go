//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	"github.com/josuedanielbust/docucol/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	outbound *session.OutboundPostgres
	incoming *session.IncomingPostgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := containers.StartPostgres(t)
	if err := session.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := &PostgresStoreSuite{
		outbound: session.NewOutboundPostgres(db),
		incoming: session.NewIncomingPostgres(db),
	}
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) TestOutboundRoundTrip() {
	ctx := context.Background()

	sess := &models.OutboundSession{
		TransferID: "t-pg-1",
		UserID:     "u-1",
		OperatorID: "op-2",
		State:      state.Initiated,
	}
	s.Require().NoError(s.outbound.Create(ctx, sess))

	sess.State = state.PendingUserDetails
	sess.User = &models.CitizenProfile{ID: "u-1", FirstName: "Ana", Email: "ana@example.com"}
	s.Require().NoError(s.outbound.Update(ctx, sess, state.Initiated))

	got, err := s.outbound.Get(ctx, "t-pg-1")
	s.Require().NoError(err)
	s.Equal(state.PendingUserDetails, got.State)
	s.Require().NotNil(got.User)
	s.Equal("Ana", got.User.FirstName)
}

func (s *PostgresStoreSuite) TestOutboundStaleTransition() {
	ctx := context.Background()

	sess := &models.OutboundSession{TransferID: "t-pg-2", UserID: "u-1", OperatorID: "op-2", State: state.PendingDocuments}
	s.Require().NoError(s.outbound.Create(ctx, sess))

	stale := *sess
	err := s.outbound.Update(ctx, &stale, state.PendingUserDetails)
	s.ErrorIs(err, session.ErrStaleTransition)
}

func (s *PostgresStoreSuite) TestIncomingRoundTripAndDelete() {
	ctx := context.Background()

	sess := &models.IncomingSession{
		TransferID: "t-pg-3",
		State:      state.Received,
		Payload: models.IncomingPayload{
			ID:           "citizen-3",
			CitizenName:  "Luis Mora",
			CitizenEmail: "luis@example.com",
			URLDocuments: map[string][]string{"cedula": {"https://src/cedula"}},
		},
	}
	s.Require().NoError(s.incoming.Create(ctx, sess))

	byUser, err := s.incoming.GetByUserID(ctx, "citizen-3")
	s.Require().NoError(err)
	s.Equal("t-pg-3", byUser.TransferID)

	s.Require().NoError(s.incoming.Delete(ctx, "t-pg-3"))
	_, err = s.incoming.Get(ctx, "t-pg-3")
	s.ErrorIs(err, session.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteStaleKeepsTerminalSessions() {
	ctx := context.Background()

	s.Require().NoError(s.outbound.Create(ctx, &models.OutboundSession{
		TransferID: "t-pg-stuck", UserID: "u", OperatorID: "op", State: state.PendingConfirmation,
	}))
	s.Require().NoError(s.outbound.Create(ctx, &models.OutboundSession{
		TransferID: "t-pg-done", UserID: "u", OperatorID: "op", State: state.Delivered,
	}))

	removed, err := s.outbound.DeleteStale(ctx, time.Now().Add(time.Minute))
	s.Require().NoError(err)
	s.GreaterOrEqual(removed, 1)

	_, err = s.outbound.Get(ctx, "t-pg-done")
	s.NoError(err)
}
