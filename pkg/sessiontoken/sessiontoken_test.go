package sessiontoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-test-secret-32chars!!!"

func TestIssueAndVerifyAccess(t *testing.T) {
	svc, err := New(testSecret, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	userID, tenantID := uuid.New(), uuid.New()
	token, err := svc.IssueAccess(userID, tenantID, "admin")
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
	assert.Empty(t, claims.TokenType)
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	svc, err := New(testSecret, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	refresh, err := svc.IssueRefresh(uuid.New(), uuid.New(), "developer")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(refresh)
	assert.Error(t, err)
}

func TestAccessTokenRejectedAsRefresh(t *testing.T) {
	svc, err := New(testSecret, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	access, err := svc.IssueAccess(uuid.New(), uuid.New(), "viewer")
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(access)
	assert.Error(t, err)
}

func TestRefreshTokenVerifiesAsRefresh(t *testing.T) {
	svc, err := New(testSecret, time.Hour, 7*24*time.Hour)
	require.NoError(t, err)

	userID, tenantID := uuid.New(), uuid.New()
	refresh, err := svc.IssueRefresh(userID, tenantID, "developer")
	require.NoError(t, err)

	claims, err := svc.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.TokenType)
	assert.Equal(t, userID, claims.Subject)
}

func TestExpiredTokenFails(t *testing.T) {
	svc, err := New(testSecret, -time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	token, err := svc.IssueAccess(uuid.New(), uuid.New(), "admin")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(token)
	assert.Error(t, err)
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := New("too-short", time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestExpiringSoon(t *testing.T) {
	svc, err := New(testSecret, 2*time.Minute, time.Hour)
	require.NoError(t, err)

	token, err := svc.IssueAccess(uuid.New(), uuid.New(), "admin")
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(token)
	require.NoError(t, err)
	assert.True(t, ExpiringSoon(claims))
}
