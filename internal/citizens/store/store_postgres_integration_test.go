//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"census/internal/citizens/store"
	"census/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	contractSuite
	postgres *containers.PostgresContainer
	pg       *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.pg = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.pg.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "citizens", "imports")
	s.Require().NoError(err)
	s.store = s.pg
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(s.pg.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()
	id, err := s.pg.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = s.pg.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.pg.GetCitizen(ctx, id, 1)
		if err != nil {
			return err
		}
		c.Name = "changed"
		if err := s.pg.UpdateCitizen(ctx, id, *c); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.pg.GetCitizen(ctx, id, 1)
	s.Require().NoError(err)
	s.Equal(sampleCitizens()[1].Name, got.Name)
}

func (s *PostgresStoreSuite) TestRunInTxCommits() {
	ctx := context.Background()
	id, err := s.pg.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)

	err = s.pg.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.pg.GetCitizen(ctx, id, 3)
		if err != nil {
			return err
		}
		c.Apartment = 12
		return s.pg.UpdateCitizen(ctx, id, *c)
	})
	s.Require().NoError(err)

	got, err := s.pg.GetCitizen(ctx, id, 3)
	s.Require().NoError(err)
	s.Equal(int64(12), got.Apartment)
}

func (s *PostgresStoreSuite) TestFailedImportLeavesNoTrace() {
	ctx := context.Background()
	_, err := s.pg.CreateImport(ctx, append(sampleCitizens(), sampleCitizens()[1]))
	s.Require().ErrorIs(err, store.ErrConflict)

	ids, err := s.pg.ListImportIDs(ctx)
	s.Require().NoError(err)
	s.Empty(ids)

	id, err := s.pg.CreateImport(ctx, sampleCitizens())
	s.Require().NoError(err)
	s.Equal(int64(1), id)
}

func (s *PostgresStoreSuite) TestPingOnClosedPoolIsUnavailable() {
	db, err := sql.Open("postgres", s.postgres.DSN)
	s.Require().NoError(err)
	s.Require().NoError(db.Close())

	s.ErrorIs(store.NewPostgres(db).Ping(context.Background()), store.ErrUnavailable)
}
