// Package authplane is the vault's front door: tenant/user registration,
// login, session refresh, API-key authentication, and the supplemented
// password-reset flow, grounded on the teacher's shared/middleware JWT
// pattern generalized through pkg/sessiontoken.
package authplane

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/internal/identity"
	"github.com/suleymanmyradov/agentkey/pkg/apikey"
	"github.com/suleymanmyradov/agentkey/pkg/password"
	"github.com/suleymanmyradov/agentkey/pkg/sessiontoken"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

const resetTokenTTL = time.Hour

// Recorder is the narrow audit dependency this package needs.
type Recorder interface {
	Append(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string, sourceIP *string) error
}

// Service authenticates callers and issues session tokens.
type Service struct {
	repo     *repository.BaseRepository
	tenants  *identity.TenantStore
	users    *identity.UserStore
	apikeys  *identity.APIKeyStore
	sessions *sessiontoken.Service
	audit    Recorder
}

func New(repo *repository.BaseRepository, tenants *identity.TenantStore, users *identity.UserStore, apikeys *identity.APIKeyStore, sessions *sessiontoken.Service, audit Recorder) *Service {
	return &Service{repo: repo, tenants: tenants, users: users, apikeys: apikeys, sessions: sessions, audit: audit}
}

func strPtr(s string) *string { return &s }

func (s *Service) auditBestEffort(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind, sourceIP string) {
	if s.audit == nil {
		return
	}
	var ipPtr *string
	if sourceIP != "" {
		ipPtr = &sourceIP
	}
	if err := s.audit.Append(ctx, tenantID, actorUserID, kind, nil, nil, nil, ipPtr); err != nil {
		logx.WithContext(ctx).Errorf("audit append failed for %s: %v", kind, err)
	}
}

// TokenPair is an access/refresh token issued on register, login, or
// refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (s *Service) issuePair(userID, tenantID uuid.UUID, role models.Role) (*TokenPair, error) {
	access, err := s.sessions.IssueAccess(userID, tenantID, string(role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.IssueRefresh(userID, tenantID, string(role))
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Register creates a new tenant and its owner user, enforcing password
// complexity before hashing, and returns an immediately-usable session.
func (s *Service) Register(ctx context.Context, tenantName, ownerEmail, rawPassword, plan string) (*models.Tenant, *models.User, *TokenPair, error) {
	if plan == "" {
		plan = "free"
	}
	hash, err := password.HashValidated(rawPassword)
	if err != nil {
		return nil, nil, nil, err
	}
	tenant, user, err := s.tenants.BootstrapTenant(ctx, tenantName, ownerEmail, hash, plan)
	if err != nil {
		return nil, nil, nil, err
	}
	pair, err := s.issuePair(user.ID, tenant.ID, user.Role)
	if err != nil {
		return nil, nil, nil, err
	}
	s.auditBestEffort(ctx, tenant.ID, &user.ID, "register", "")
	return tenant, user, pair, nil
}

// Login verifies email/password, rejects inactive users, and issues a
// fresh token pair, touching last_login_at on success.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, nil, apperr.New(apperr.Unauthorized, "invalid email or password")
		}
		return nil, nil, err
	}
	if !user.Active {
		s.auditBestEffort(ctx, user.TenantID, &user.ID, "login_failed", "")
		return nil, nil, apperr.New(apperr.Forbidden, "user account is disabled")
	}
	if !password.Verify(rawPassword, user.PasswordHash) {
		s.auditBestEffort(ctx, user.TenantID, &user.ID, "login_failed", "")
		return nil, nil, apperr.New(apperr.Unauthorized, "invalid email or password")
	}

	pair, err := s.issuePair(user.ID, user.TenantID, user.Role)
	if err != nil {
		return nil, nil, err
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, nil, err
	}
	s.auditBestEffort(ctx, user.TenantID, &user.ID, "login", "")
	return user, pair, nil
}

// Refresh verifies a refresh token and issues a new access token for the
// same session. The refresh token itself is not rotated — it remains
// valid until its own expiry, matching the JWT-only (no server-side
// refresh-token revocation list) design of pkg/sessiontoken.
func (s *Service) Refresh(_ context.Context, refreshToken string) (string, error) {
	claims, err := s.sessions.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return s.sessions.IssueAccess(claims.Subject, claims.TenantID, claims.Role)
}

// AuthenticateAPIKey validates an API key's format, resolves it to its
// owning agent, and touches the agent's last-used timestamp.
func (s *Service) AuthenticateAPIKey(ctx context.Context, rawKey string) (*models.Agent, error) {
	if !apikey.ValidateFormat(rawKey) {
		return nil, apperr.New(apperr.Unauthorized, "malformed API key")
	}
	hash := apikey.Hash(rawKey)
	agent, err := s.apikeys.FindAgentByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if agent.Status != models.AgentActive {
		return nil, apperr.New(apperr.Forbidden, "agent is not active")
	}
	if _, err := s.repo.ExecRaw(ctx, repository.UpdateAgentLastUsedQuery, agent.ID); err != nil {
		logx.WithContext(ctx).Errorf("failed to touch agent last-used: %v", err)
	}
	return agent, nil
}

func generateResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", apperr.Wrap(apperr.InternalError, "failed to generate reset token", err)
	}
	raw = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	return raw, hex.EncodeToString(sum[:]), nil
}

// RequestPasswordReset issues a one-hour reset token for email and
// returns the raw token to deliver out-of-band (e.g. by email). A
// not-found user returns apperr.NotFound so callers can decide whether to
// mask it from the end user — this package does not make that UX choice.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	raw, hash, err := generateResetToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	token := &models.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(resetTokenTTL),
		Used:      false,
		CreatedAt: now,
	}
	if err := s.repo.Exec(ctx, repository.InsertPasswordResetTokenQuery, token); err != nil {
		return "", err
	}
	s.auditBestEffort(ctx, user.TenantID, &user.ID, "password_reset_requested", "")
	return raw, nil
}

// CompletePasswordReset validates rawToken against its stored hash,
// rejects expired or already-used tokens, and sets the new password.
func (s *Service) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	sum := sha256.Sum256([]byte(rawToken))
	hash := hex.EncodeToString(sum[:])

	var token models.PasswordResetToken
	if err := s.repo.Get(ctx, &token, repository.SelectPasswordResetTokenQuery, hash); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return apperr.New(apperr.Unauthorized, "invalid or expired reset token")
		}
		return err
	}
	if token.Used {
		return apperr.New(apperr.Unauthorized, "reset token has already been used")
	}
	if time.Now().UTC().After(token.ExpiresAt) {
		return apperr.New(apperr.Unauthorized, "reset token has expired")
	}

	newHash, err := password.HashValidated(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, token.UserID, newHash); err != nil {
		return err
	}
	_, err = s.repo.ExecRaw(ctx, repository.MarkPasswordResetTokenUsedQuery, token.ID)
	return err
}
