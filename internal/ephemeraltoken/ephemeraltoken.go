// Package ephemeraltoken issues, verifies, and revokes the short-lived
// bearer tokens that carry a decrypted credential secret. Grounded on
// original_source/src/services/ephemeral_token.rs: the persisted
// ephemeral_tokens row is authoritative for revocation, never the JWT
// alone — verification always re-checks the database.
package ephemeraltoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/pkg/cryptoutil"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

const (
	tokenType          = "ephemeral"
	defaultTTL         = 5 * time.Minute
	signaturePrefixLen = 32
)

// Claims is the JWT payload. It carries the decrypted secret in
// plaintext by design — that is the entire point of an ephemeral
// token — so its TTL is deliberately short and every issuance and use is
// audited.
type Claims struct {
	AgentID        uuid.UUID `json:"agent_id"`
	TenantID       uuid.UUID `json:"team_id"`
	Secret         string    `json:"secret"`
	CredentialType string    `json:"credential_type"`
	CredentialName string    `json:"credential_name"`
	TokenType      string    `json:"token_type"`
	jwt.RegisteredClaims
}

// Recorder is the narrow audit dependency this package needs.
type Recorder interface {
	Append(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string, sourceIP *string) error
}

// Service issues and verifies ephemeral tokens.
type Service struct {
	repo   *repository.BaseRepository
	cipher *cryptoutil.Cipher
	secret []byte
	ttl    time.Duration
	audit  Recorder
}

// New constructs a Service with the default 5-minute TTL.
func New(repo *repository.BaseRepository, cipher *cryptoutil.Cipher, jwtSecret string, audit Recorder) *Service {
	return &Service{repo: repo, cipher: cipher, secret: []byte(jwtSecret), ttl: defaultTTL, audit: audit}
}

// WithTTL returns a copy of s using ttl instead of the default — used by
// tests that need a token they can observe expiring.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	clone := *s
	clone.ttl = ttl
	return &clone
}

func strPtr(s string) *string { return &s }

// ipPtr returns nil for an empty source IP so Recorder.Append's optional
// column is left unset rather than storing the empty string.
func ipPtr(sourceIP string) *string {
	if sourceIP == "" {
		return nil
	}
	return &sourceIP
}

// Issue looks up credentialName for agentID, requires both the agent and
// the credential to be active, decrypts the secret, and returns a signed
// ephemeral token carrying it. The agent's last-used and the
// credential's last-accessed timestamps are updated, and the issuance is
// audited — without ever logging the secret.
func (s *Service) Issue(ctx context.Context, agentID uuid.UUID, credentialName, sourceIP string) (token string, expiresIn time.Duration, credType string, err error) {
	var agent models.Agent
	if err := s.repo.Get(ctx, &agent, repository.SelectAgentByIDQuery, agentID); err != nil {
		return "", 0, "", err
	}
	if agent.Status != models.AgentActive {
		return "", 0, "", apperr.New(apperr.Forbidden, "agent is not active")
	}

	var cred models.Credential
	if err := s.repo.Get(ctx, &cred, repository.SelectCredentialByNameQuery, agentID, credentialName); err != nil {
		return "", 0, "", err
	}
	if !cred.Active {
		return "", 0, "", apperr.New(apperr.Forbidden, "credential is not active")
	}

	aad := cryptoutil.AAD(agentID, cred.ID)
	plaintext, err := s.cipher.Decrypt(cred.EncryptedValue, aad)
	if err != nil {
		return "", 0, "", err
	}

	jti := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		AgentID:        agentID,
		TenantID:       cred.TenantID,
		Secret:         string(plaintext),
		CredentialType: cred.Type,
		CredentialName: cred.Name,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, "", apperr.Wrap(apperr.JwtError, "failed to sign ephemeral token", err)
	}

	prefix := signed
	if len(prefix) > signaturePrefixLen {
		prefix = prefix[:signaturePrefixLen]
	}

	record := &models.EphemeralTokenRecord{
		ID:              uuid.New(),
		Jti:             jti,
		AgentID:         agentID,
		CredentialID:    cred.ID,
		TenantID:        cred.TenantID,
		SignaturePrefix: prefix,
		Status:          models.TokenActive,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
	}
	if err := s.repo.Exec(ctx, repository.InsertEphemeralTokenQuery, record); err != nil {
		return "", 0, "", err
	}

	if s.audit != nil {
		targetKind := "ephemeral_token"
		if err := s.audit.Append(ctx, cred.TenantID, nil, "ephemeral_token.issued", &targetKind, &cred.ID, strPtr("issued ephemeral token for "+credentialName), ipPtr(sourceIP)); err != nil {
			logx.WithContext(ctx).Errorf("audit append failed for ephemeral token issuance: %v", err)
		}
	}

	if _, err := s.repo.ExecRaw(ctx, repository.UpdateAgentLastUsedQuery, agentID); err != nil {
		logx.WithContext(ctx).Errorf("failed to touch agent last-used: %v", err)
	}
	if _, err := s.repo.ExecRaw(ctx, repository.UpdateCredentialLastAccessedQuery, cred.ID); err != nil {
		logx.WithContext(ctx).Errorf("failed to touch credential last-accessed: %v", err)
	}

	return signed, s.ttl, cred.Type, nil
}

// Verified is the result of a successful Verify call.
type Verified struct {
	AgentID        uuid.UUID
	CredentialID   uuid.UUID
	TenantID       uuid.UUID
	Secret         string
	CredentialType string
	Jti            string
}

// Verify decodes and validates the JWT, then checks the database record
// for revocation — the database row, not the token's own expiry claim,
// is authoritative once issued, since revocation is a DB-only operation
// (see Revoke).
func (s *Service) Verify(ctx context.Context, token, sourceIP string) (*Verified, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.JwtError, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperr.Wrap(apperr.Unauthorized, "token has expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, apperr.Wrap(apperr.Unauthorized, "invalid token signature", err)
		default:
			return nil, apperr.Wrap(apperr.Unauthorized, "invalid ephemeral token", err)
		}
	}
	if claims.TokenType != tokenType {
		return nil, apperr.New(apperr.Unauthorized, "invalid token type")
	}

	var record models.EphemeralTokenRecord
	if err := s.repo.Get(ctx, &record, repository.SelectEphemeralTokenByJtiQuery, claims.ID); err != nil {
		return nil, apperr.New(apperr.Unauthorized, "token not found")
	}
	switch record.Status {
	case models.TokenRevoked:
		return nil, apperr.New(apperr.Unauthorized, "token has been revoked")
	case models.TokenExpired:
		return nil, apperr.New(apperr.Unauthorized, "token has expired")
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		return nil, apperr.New(apperr.Unauthorized, "token has expired")
	}

	credID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "malformed token subject", err)
	}

	if s.audit != nil {
		targetKind := "ephemeral_token"
		if err := s.audit.Append(ctx, record.TenantID, nil, "ephemeral_token.used", &targetKind, &record.CredentialID, strPtr("ephemeral token verified"), ipPtr(sourceIP)); err != nil {
			logx.WithContext(ctx).Errorf("audit append failed for ephemeral token use: %v", err)
		}
	}

	return &Verified{
		AgentID:        claims.AgentID,
		CredentialID:   credID,
		TenantID:       claims.TenantID,
		Secret:         claims.Secret,
		CredentialType: claims.CredentialType,
		Jti:            claims.ID,
	}, nil
}

// Revoke marks jti revoked, making every subsequent Verify call fail
// regardless of the JWT's own expiry. Idempotent: revoking an
// already-revoked jti returns success, mirroring
// original_source/src/services/ephemeral_token.rs's revoke_token.
func (s *Service) Revoke(ctx context.Context, jti string) error {
	var record models.EphemeralTokenRecord
	if err := s.repo.Get(ctx, &record, repository.SelectEphemeralTokenByJtiQuery, jti); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return apperr.NotFoundf("ephemeral token %s not found", jti)
		}
		return err
	}
	if record.Status == models.TokenRevoked {
		return nil
	}

	res, err := s.repo.ExecRaw(ctx, repository.RevokeEphemeralTokenQuery, jti)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to read rows affected", err)
	}
	if n == 0 {
		return apperr.NotFoundf("ephemeral token %s not found", jti)
	}

	if s.audit != nil {
		targetKind := "ephemeral_token"
		if err := s.audit.Append(ctx, record.TenantID, nil, "ephemeral_token.revoked", &targetKind, &record.CredentialID, strPtr("revoked ephemeral token"), nil); err != nil {
			logx.WithContext(ctx).Errorf("audit append failed for ephemeral token revocation: %v", err)
		}
	}
	return nil
}

// TokenStatus is the read-only view of a token's lifecycle state, backed
// by original_source's get_token_status: an active row past its
// expires_at reports "expired" even before Sweep has run.
type TokenStatus struct {
	Jti       string
	Status    models.TokenStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Status looks up jti's persisted record without side effects, reporting
// "expired" for an active row whose expires_at has already passed.
func (s *Service) Status(ctx context.Context, jti string) (*TokenStatus, error) {
	var record models.EphemeralTokenRecord
	if err := s.repo.Get(ctx, &record, repository.SelectEphemeralTokenByJtiQuery, jti); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.NotFoundf("ephemeral token %s not found", jti)
		}
		return nil, err
	}
	status := record.Status
	if status == models.TokenActive && time.Now().UTC().After(record.ExpiresAt) {
		status = models.TokenExpired
	}
	return &TokenStatus{
		Jti:       record.Jti,
		Status:    status,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Sweep marks every expired-but-still-active token row as expired — a
// maintenance operation a scheduler runs periodically, since an
// unrevoked token's DB row otherwise stays "active" forever once its JWT
// expiry passes.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	res, err := s.repo.ExecRaw(ctx, repository.SweepExpiredEphemeralTokensQuery)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.DatabaseError, "failed to read rows affected", err)
	}
	return n, nil
}
