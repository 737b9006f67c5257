//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/josuedanielbust/docucol/internal/identity/models"
	"github.com/josuedanielbust/docucol/internal/identity/store"
	"github.com/josuedanielbust/docucol/pkg/testutil/containers"
)

type UsersPostgresSuite struct {
	suite.Suite
	store *store.PostgresStore
}

func TestUsersPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := containers.StartPostgres(t)
	s := &UsersPostgresSuite{store: store.NewPostgresStore(db)}
	if err := s.store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	suite.Run(t, s)
}

func (s *UsersPostgresSuite) TestUpsertGetDelete() {
	ctx := context.Background()

	user := &models.User{ID: "u-pg-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	s.Require().NoError(s.store.Upsert(ctx, user))
	s.False(user.CreatedAt.IsZero())

	got, err := s.store.Get(ctx, "u-pg-1")
	s.Require().NoError(err)
	s.Equal("Ada", got.FirstName)

	got.Email = "ada@docucol.example"
	s.Require().NoError(s.store.Upsert(ctx, got))

	updated, err := s.store.Get(ctx, "u-pg-1")
	s.Require().NoError(err)
	s.Equal("ada@docucol.example", updated.Email)
	s.Equal(got.CreatedAt, updated.CreatedAt)

	s.Require().NoError(s.store.Delete(ctx, "u-pg-1"))
	_, err = s.store.Get(ctx, "u-pg-1")
	s.Require().ErrorIs(err, store.ErrNotFound)
}

func (s *UsersPostgresSuite) TestDeleteUnknown() {
	s.Require().ErrorIs(s.store.Delete(context.Background(), "u-missing"), store.ErrNotFound)
}
