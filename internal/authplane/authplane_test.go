package authplane

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/agentkey/internal/identity"
	"github.com/suleymanmyradov/agentkey/pkg/password"
	"github.com/suleymanmyradov/agentkey/pkg/sessiontoken"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

type fakeRecorder struct {
	calls []string
}

func (f *fakeRecorder) Append(_ context.Context, _ uuid.UUID, _ *uuid.UUID, kind string, _ *string, _ *uuid.UUID, _ *string, _ *string) error {
	f.calls = append(f.calls, kind)
	return nil
}

func newMockRepo(t *testing.T) (*repository.BaseRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return repository.NewBaseRepository(sqlxDB), mock, func() { _ = db.Close() }
}

func newService(t *testing.T, repo *repository.BaseRepository, rec Recorder) *Service {
	t.Helper()
	sessions, err := sessiontoken.New("test-session-secret-at-least-32-bytes!!", 0, 0)
	require.NoError(t, err)
	return New(repo,
		identity.NewTenantStore(repo),
		identity.NewUserStore(repo),
		identity.NewAPIKeyStore(repo, nil),
		sessions,
		rec,
	)
}

func userCols() []string {
	return []string{
		"id", "email", "password_hash", "tenant_id", "role", "active",
		"last_login_at", "created_at", "updated_at", "deleted_at",
	}
}

func TestRegisterSuccess(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE tenants SET owner_user_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &fakeRecorder{}
	svc := newService(t, repo, rec)
	tenant, user, pair, err := svc.Register(context.Background(), "acme", "owner@acme.test", "Str0ng!Passw0rd", "pro")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)
	assert.Equal(t, "owner@acme.test", user.Email)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Contains(t, rec.calls, "register")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	repo, _, cleanup := newMockRepo(t)
	defer cleanup()

	svc := newService(t, repo, &fakeRecorder{})
	_, _, _, err := svc.Register(context.Background(), "acme", "owner@acme.test", "short", "free")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestLoginSuccess(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	hash, err := password.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)

	userID := uuid.New()
	tenantID := uuid.New()
	rows := sqlmock.NewRows(userCols()).AddRow(
		userID, "owner@acme.test", hash, tenantID, "admin", true, nil, time.Now(), time.Now(), nil,
	)
	mock.ExpectQuery("SELECT \\* FROM users").WithArgs("owner@acme.test").WillReturnRows(rows)
	mock.ExpectExec("UPDATE users SET last_login_at").WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &fakeRecorder{}
	svc := newService(t, repo, rec)
	user, pair, err := svc.Login(context.Background(), "owner@acme.test", "Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Contains(t, rec.calls, "login")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	hash, err := password.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)

	rows := sqlmock.NewRows(userCols()).AddRow(
		uuid.New(), "owner@acme.test", hash, uuid.New(), "admin", true, nil, time.Now(), time.Now(), nil,
	)
	mock.ExpectQuery("SELECT \\* FROM users").WithArgs("owner@acme.test").WillReturnRows(rows)

	rec := &fakeRecorder{}
	svc := newService(t, repo, rec)
	_, _, err = svc.Login(context.Background(), "owner@acme.test", "WrongPassword!1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
	assert.Contains(t, rec.calls, "login_failed")
}

func TestLoginInactiveUserForbidden(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	hash, err := password.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)

	rows := sqlmock.NewRows(userCols()).AddRow(
		uuid.New(), "owner@acme.test", hash, uuid.New(), "admin", false, nil, time.Now(), time.Now(), nil,
	)
	mock.ExpectQuery("SELECT \\* FROM users").WithArgs("owner@acme.test").WillReturnRows(rows)

	rec := &fakeRecorder{}
	svc := newService(t, repo, rec)
	_, _, err = svc.Login(context.Background(), "owner@acme.test", "Str0ng!Passw0rd")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
	assert.Contains(t, rec.calls, "login_failed")
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	repo, _, cleanup := newMockRepo(t)
	defer cleanup()

	svc := newService(t, repo, &fakeRecorder{})
	userID := uuid.New()
	tenantID := uuid.New()
	refresh, err := svc.sessions.IssueRefresh(userID, tenantID, "admin")
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo, _, cleanup := newMockRepo(t)
	defer cleanup()

	svc := newService(t, repo, &fakeRecorder{})
	access, err := svc.sessions.IssueAccess(uuid.New(), uuid.New(), "admin")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), access)
	require.Error(t, err)
}

func TestCompletePasswordResetSuccess(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	userID := uuid.New()
	rawToken := "deadbeefdeadbeefdeadbeefdeadbeef"
	sum := sha256.Sum256([]byte(rawToken))
	tokenHash := hex.EncodeToString(sum[:])

	cols := []string{"id", "user_id", "token_hash", "expires_at", "used", "created_at", "used_at"}
	rows := sqlmock.NewRows(cols).AddRow(
		uuid.New(), userID, tokenHash, time.Now().Add(time.Hour), false, time.Now(), nil,
	)
	mock.ExpectQuery("SELECT \\* FROM password_reset_tokens").WithArgs(tokenHash).WillReturnRows(rows)
	mock.ExpectExec("UPDATE users SET password_hash").WithArgs(userID, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE password_reset_tokens SET used").WillReturnResult(sqlmock.NewResult(0, 1))

	svc := newService(t, repo, &fakeRecorder{})
	err := svc.CompletePasswordReset(context.Background(), rawToken, "NewStr0ng!Pass")
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePasswordResetExpired(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	userID := uuid.New()
	rawToken := "deadbeefdeadbeefdeadbeefdeadbeef"
	sum := sha256.Sum256([]byte(rawToken))
	tokenHash := hex.EncodeToString(sum[:])

	cols := []string{"id", "user_id", "token_hash", "expires_at", "used", "created_at", "used_at"}
	rows := sqlmock.NewRows(cols).AddRow(
		uuid.New(), userID, tokenHash, time.Now().Add(-time.Hour), false, time.Now(), nil,
	)
	mock.ExpectQuery("SELECT \\* FROM password_reset_tokens").WithArgs(tokenHash).WillReturnRows(rows)

	svc := newService(t, repo, &fakeRecorder{})
	err := svc.CompletePasswordReset(context.Background(), rawToken, "NewStr0ng!Pass")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}
