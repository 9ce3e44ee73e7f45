//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"redmig/internal/audit"
	"redmig/internal/domain"
	"redmig/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = audit.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.Close()
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.DB.ExecContext(context.Background(), "TRUNCATE migration_audit")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendAndListByRun() {
	ctx := context.Background()
	runID := uuid.New()
	otherRun := uuid.New()

	events := []audit.Event{
		{ID: uuid.New(), RunID: runID, Timestamp: time.Now().UTC(), Kind: audit.KindRunStarted},
		{ID: uuid.New(), RunID: runID, Timestamp: time.Now().UTC().Add(time.Second), Kind: audit.KindRecordOutcome,
			RecordID: "P-001", Event: "baseline_arm_1", Instance: 1,
			Status: domain.StatusConfirmed},
		{ID: uuid.New(), RunID: runID, Timestamp: time.Now().UTC().Add(2 * time.Second), Kind: audit.KindRecordOutcome,
			RecordID: "P-002", Instance: 1,
			Status: domain.StatusSkipped, Code: domain.CodeOutOfRange, Message: "pre-validation rejected the record"},
		{ID: uuid.New(), RunID: runID, Timestamp: time.Now().UTC().Add(3 * time.Second), Kind: audit.KindBatchCommitted, BatchIndex: 0},
		{ID: uuid.New(), RunID: otherRun, Timestamp: time.Now().UTC(), Kind: audit.KindRunStarted},
	}
	for _, e := range events {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	got, err := s.store.ListByRun(ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(got, 4, "events from other runs are excluded")

	s.Equal(audit.KindRunStarted, got[0].Kind, "events come back in timestamp order")
	s.Equal("P-001", got[1].RecordID)
	s.Equal(domain.StatusConfirmed, got[1].Status)
	s.Equal("baseline_arm_1", got[1].Event)
	s.Equal(domain.CodeOutOfRange, got[2].Code)
	s.Equal(audit.KindBatchCommitted, got[3].Kind)
}

func (s *PostgresStoreSuite) TestListByRunEmpty() {
	got, err := s.store.ListByRun(context.Background(), uuid.New())
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Migrate(ctx))
	s.Require().NoError(s.store.Migrate(ctx))
}
