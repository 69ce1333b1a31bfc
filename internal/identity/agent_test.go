package identity

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

func TestAgentStoreCreate(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewAgentStore(repo)
	agent, err := store.Create(context.Background(), uuid.New(), uuid.New(), "billing-bot", "hash123")
	require.NoError(t, err)
	assert.Equal(t, "billing-bot", agent.Name)
	assert.Equal(t, "hash123", agent.CurrentKeyHash)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentStoreCreateDuplicateName(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO agents").
		WillReturnError(&pq.Error{Code: "23505"})

	store := NewAgentStore(repo)
	_, err := store.Create(context.Background(), uuid.New(), uuid.New(), "billing-bot", "hash123")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestAgentStoreSoftDeleteNotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE agents SET deleted_at").WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewAgentStore(repo)
	err := store.SoftDelete(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestAgentStoreCountLive(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	tenantID := uuid.New()
	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM agents").WithArgs(tenantID).WillReturnRows(rows)

	store := NewAgentStore(repo)
	n, err := store.CountLive(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
