// Package sessiontoken issues and verifies the signed session tokens user
// logins use, generalizing the teacher's shared/middleware.JWTMiddleware
// (access/refresh pair, HS256) to this domain's claim set.
package sessiontoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

const (
	issuer           = "agentkey"
	refreshTokenType = "refresh"
	minSecretLen     = 32

	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	expiringSoonWindow = 5 * time.Minute
)

// Claims is the shared claim shape for both access and refresh tokens.
// TokenType is empty on access tokens and "refresh" on refresh tokens —
// the one field that disjoints the two, per spec.md §4.5.
type Claims struct {
	Subject   uuid.UUID `json:"sub"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Role      string    `json:"role"`
	TokenType string    `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies session tokens with a single shared secret.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New constructs a Service. secret must be at least 32 characters, per
// spec.md §6's JWT_SECRET contract.
func New(secret string, accessTTL, refreshTTL time.Duration) (*Service, error) {
	if len(secret) < minSecretLen {
		return nil, apperr.New(apperr.JwtError, "session token secret must be at least 32 characters")
	}
	if accessTTL == 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Service{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

func (s *Service) claims(userID, tenantID uuid.UUID, role string, ttl time.Duration, tokenType string) Claims {
	now := time.Now().UTC()
	return Claims{
		Subject:   userID,
		TenantID:  tenantID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// IssueAccess signs an access token: no token_type claim, default 1-hour
// expiry (configurable at construction).
func (s *Service) IssueAccess(userID, tenantID uuid.UUID, role string) (string, error) {
	return s.sign(s.claims(userID, tenantID, role, s.accessTTL, ""))
}

// IssueRefresh signs a refresh token: token_type="refresh", default
// 7-day expiry.
func (s *Service) IssueRefresh(userID, tenantID uuid.UUID, role string) (string, error) {
	return s.sign(s.claims(userID, tenantID, role, s.refreshTTL, refreshTokenType))
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.JwtError, "failed to sign token", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.JwtError, "unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, apperr.Wrap(apperr.JwtError, "invalid token", err)
	}
	return &claims, nil
}

// VerifyAccess decodes and validates an access token. An access token is
// distinguished by TokenType being empty, so a refresh token presented
// here fails even though its signature, issuer and expiry are valid.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, apperr.New(apperr.Unauthorized, "expected an access token")
	}
	return claims, nil
}

// VerifyRefresh decodes and validates a refresh token, requiring
// token_type == "refresh". Presenting an access token here fails.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, apperr.New(apperr.Unauthorized, "expected a refresh token")
	}
	return claims, nil
}

// ExpiringSoon reports whether claims.ExpiresAt is within 5 minutes of now.
func ExpiringSoon(claims *Claims) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	return time.Until(claims.ExpiresAt.Time) <= expiringSoonWindow
}
