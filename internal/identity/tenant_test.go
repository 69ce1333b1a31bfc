package identity

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

func newMockRepo(t *testing.T) (*repository.BaseRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return repository.NewBaseRepository(sqlxDB), mock, func() { _ = db.Close() }
}

func TestBootstrapTenantSuccess(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE tenants SET owner_user_id").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := NewTenantStore(repo)
	tenant, user, err := store.BootstrapTenant(context.Background(), "acme", "owner@acme.test", "hashed", "pro")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)
	assert.Equal(t, user.ID, tenant.OwnerUserID)
	assert.Equal(t, "owner@acme.test", user.Email)
	assert.Equal(t, 50, tenant.MaxAgents)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapTenantDuplicateNameRollsBack(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	store := NewTenantStore(repo)
	_, _, err := store.BootstrapTenant(context.Background(), "acme", "owner@acme.test", "hashed", "free")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanLimits(t *testing.T) {
	agents, creds, reads := PlanLimits("enterprise")
	assert.Equal(t, -1, agents)
	assert.Equal(t, -1, creds)
	assert.Equal(t, -1, reads)

	agents, creds, reads = PlanLimits("free")
	assert.Equal(t, 5, agents)
	assert.Equal(t, 25, creds)
	assert.Equal(t, 1000, reads)

	agents, _, _ = PlanLimits("unknown-plan")
	assert.Equal(t, 5, agents)
}
