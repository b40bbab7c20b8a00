package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

func outboxRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "topic", "payload", "attempts", "created_at", "published_at"}).
		AddRow("m1", models.TopicPetitionTransition, []byte(`{"petition_id":1}`), 0, now, nil).
		AddRow("m2", models.TopicPetitionTransition, []byte(`{"petition_id":2}`), 0, now, nil)
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WithArgs(10).WillReturnRows(outboxRows())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET published_at = $2 WHERE id = $1")).WithArgs("m1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET published_at = $2 WHERE id = $1")).WithArgs("m2", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen []string
	n, err := repo.Relay(context.Background(), 10, func(ctx context.Context, msg models.OutboxMessage) error {
		seen = append(seen, msg.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m2"}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRelayStopsAtFirstFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(outboxRows())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET attempts = attempts + 1")).WithArgs("m1", "redis down").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.Relay(context.Background(), 0, func(ctx context.Context, msg models.OutboxMessage) error {
		return errors.New("redis down")
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxOldestPendingAge(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(created_at) FROM outbox WHERE published_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(time.Now().Add(-time.Minute)))
	age, err := repo.OldestPendingAge(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, age, time.Minute)

	mock.ExpectQuery("SELECT MIN").WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))
	age, err = repo.OldestPendingAge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, age)
}
