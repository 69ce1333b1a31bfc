package quota

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
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

func TestPlanLimits(t *testing.T) {
	api, rot := PlanLimits("enterprise")
	assert.Equal(t, -1, api)
	assert.Equal(t, 100, rot)

	api, rot = PlanLimits("pro")
	assert.Equal(t, 100000, api)
	assert.Equal(t, 50, rot)

	api, rot = PlanLimits("free")
	assert.Equal(t, 1000, api)
	assert.Equal(t, 5, rot)

	api, _ = PlanLimits("nonsense")
	assert.Equal(t, 1000, api)
}

func TestCheckAgentLimitUnlimited(t *testing.T) {
	assert.True(t, CheckAgentLimit(-1, 1_000_000))
}

func TestCheckAgentLimitBounded(t *testing.T) {
	assert.True(t, CheckAgentLimit(5, 4))
	assert.False(t, CheckAgentLimit(5, 5))
}

func quotaCols() []string {
	return []string{"agent_id", "tenant_id", "month_year", "api_calls_used", "api_calls_limit", "key_rotations_used", "key_rotations_limit", "created_at", "updated_at"}
}

func TestCheckAndIncrementAPICallWithinLimit(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	month := currentMonthYear()
	rows := sqlmock.NewRows(quotaCols()).AddRow(agentID, uuid.New(), month, 10, 1000, 0, 5, time.Now(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM agent_quotas").WithArgs(agentID, month).WillReturnRows(rows)
	mock.ExpectExec("UPDATE agent_quotas SET api_calls_used").WithArgs(agentID, month).WillReturnResult(sqlmock.NewResult(0, 1))

	svc := New(repo)
	err := svc.CheckAndIncrementAPICall(context.Background(), agentID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrementAPICallExceeded(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	month := currentMonthYear()
	rows := sqlmock.NewRows(quotaCols()).AddRow(agentID, uuid.New(), month, 1000, 1000, 0, 5, time.Now(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM agent_quotas").WithArgs(agentID, month).WillReturnRows(rows)

	svc := New(repo)
	err := svc.CheckAndIncrementAPICall(context.Background(), agentID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

func TestCheckAndIncrementAPICallUnlimited(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	month := currentMonthYear()
	rows := sqlmock.NewRows(quotaCols()).AddRow(agentID, uuid.New(), month, 999999, -1, 0, 100, time.Now(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM agent_quotas").WithArgs(agentID, month).WillReturnRows(rows)
	mock.ExpectExec("UPDATE agent_quotas SET api_calls_used").WithArgs(agentID, month).WillReturnResult(sqlmock.NewResult(0, 1))

	svc := New(repo)
	err := svc.CheckAndIncrementAPICall(context.Background(), agentID)
	require.NoError(t, err)
}

func TestGetUsageNotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	agentID := uuid.New()
	month := currentMonthYear()
	mock.ExpectQuery("SELECT \\* FROM agent_quotas").WithArgs(agentID, month).WillReturnRows(sqlmock.NewRows(quotaCols()))

	svc := New(repo)
	_, err := svc.GetUsage(context.Background(), agentID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
