package identity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/agentkey/pkg/apikey"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

func TestAPIKeyStoreIssue(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO agent_api_keys").WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewAPIKeyStore(repo, nil)
	raw, err := store.Issue(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, apikey.ValidateFormat(raw))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyStoreFindAgentByHashNoCache(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	cols := []string{"id", "tenant_id", "name", "status", "current_key_hash", "usage_count", "last_used_at", "created_by", "created_at", "updated_at", "deleted_at"}
	rows := sqlmock.NewRows(cols).AddRow(agentID, uuid.New(), "bot", "active", "h", 0, nil, uuid.New(), time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT a\\.\\* FROM agents").WithArgs("somehash").WillReturnRows(rows)

	store := NewAPIKeyStore(repo, nil)
	agent, err := store.FindAgentByHash(context.Background(), "somehash")
	require.NoError(t, err)
	assert.Equal(t, agentID, agent.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyStoreFindAgentByHashNotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT a\\.\\* FROM agents").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	store := NewAPIKeyStore(repo, nil)
	_, err := store.FindAgentByHash(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestAPIKeyStoreRevokeAll(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	cols := []string{"id", "agent_id", "key_hash", "status", "created_at", "revoked_at"}
	rows := sqlmock.NewRows(cols).AddRow(uuid.New(), agentID, "h1", "active", time.Now(), nil)
	mock.ExpectQuery("SELECT \\* FROM agent_api_keys").WithArgs(agentID).WillReturnRows(rows)
	mock.ExpectExec("UPDATE agent_api_keys SET status").WithArgs(agentID).WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewAPIKeyStore(repo, nil)
	err := store.RevokeAll(context.Background(), agentID)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
