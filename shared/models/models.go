// Package models holds the vault's persisted entities, adapted from the
// teacher's shared/models.BaseModel + sqlx struct-tag idiom to this
// domain's tenant/user/agent/credential schema.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's authorization level within its tenant. Roles obey the
// hierarchy admin ⊇ developer ⊇ viewer (see Role.Satisfies).
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer:    0,
	RoleDeveloper: 1,
	RoleAdmin:     2,
}

// Satisfies reports whether r grants at least the privilege of min.
func (r Role) Satisfies(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// AgentStatus is the lifecycle state of an Agent.
type AgentStatus string

const (
	AgentActive    AgentStatus = "active"
	AgentSuspended AgentStatus = "suspended"
	AgentArchived  AgentStatus = "archived"
)

// APIKeyStatus is the lifecycle state of an AgentAPIKey.
type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
)

// VersionStatus is the lifecycle state of a CredentialVersion.
type VersionStatus string

const (
	VersionActive     VersionStatus = "active"
	VersionSuperseded VersionStatus = "superseded"
	VersionExpired    VersionStatus = "expired"
)

// TokenStatus is the lifecycle state of an EphemeralTokenRecord.
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenRevoked TokenStatus = "revoked"
	TokenExpired TokenStatus = "expired"
)

// Tenant is the billing and isolation boundary; every resource is
// tenant-scoped.
type Tenant struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	OwnerUserID     uuid.UUID  `db:"owner_user_id" json:"owner_user_id"`
	Plan            string     `db:"plan" json:"plan"`
	MaxAgents       int        `db:"max_agents" json:"max_agents"`
	MaxCredentials  int        `db:"max_credentials" json:"max_credentials"`
	MaxMonthlyReads int        `db:"max_monthly_reads" json:"max_monthly_reads"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// User authenticates via session tokens and belongs to exactly one tenant.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	TenantID     uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	Role         Role       `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Agent is an autonomous caller that authenticates with an API key and
// holds credentials on behalf of its tenant.
type Agent struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	TenantID       uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	Name           string      `db:"name" json:"name"`
	Status         AgentStatus `db:"status" json:"status"`
	CurrentKeyHash string      `db:"current_key_hash" json:"-"`
	UsageCount     int64       `db:"usage_count" json:"usage_count"`
	LastUsedAt     *time.Time  `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedBy      uuid.UUID   `db:"created_by" json:"created_by"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
}

// AgentAPIKey is one historical key issued to an Agent. Only its hash is
// ever stored; the raw key is returned to the caller exactly once, at
// creation time.
type AgentAPIKey struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	AgentID   uuid.UUID    `db:"agent_id" json:"agent_id"`
	KeyHash   string       `db:"key_hash" json:"-"`
	Status    APIKeyStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	RevokedAt *time.Time   `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Credential is an envelope-encrypted secret belonging to one agent.
type Credential struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	AgentID              uuid.UUID  `db:"agent_id" json:"agent_id"`
	TenantID             uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	Name                 string     `db:"name" json:"name"`
	Type                 string     `db:"type" json:"type"`
	Description          string     `db:"description" json:"description"`
	EncryptedValue       []byte     `db:"encrypted_value" json:"-"`
	Active               bool       `db:"active" json:"active"`
	RotationEnabled      bool       `db:"rotation_enabled" json:"rotation_enabled"`
	RotationIntervalDays int        `db:"rotation_interval_days" json:"rotation_interval_days"`
	LastRotatedAt        *time.Time `db:"last_rotated_at" json:"last_rotated_at,omitempty"`
	NextRotationDue      *time.Time `db:"next_rotation_due" json:"next_rotation_due,omitempty"`
	LastAccessedAt       *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedBy            uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt            *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// CredentialVersion is one immutable snapshot in a credential's version
// chain. At most one version per credential is ever Active.
type CredentialVersion struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	CredentialID   uuid.UUID     `db:"credential_id" json:"credential_id"`
	Version        int           `db:"version" json:"version"`
	EncryptedValue []byte        `db:"encrypted_value" json:"-"`
	Status         VersionStatus `db:"status" json:"status"`
	ExpiredAt      *time.Time    `db:"expired_at" json:"expired_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// EphemeralTokenRecord is the persisted authority over an issued
// ephemeral bearer token; revocation is decided here, not in the token
// itself.
type EphemeralTokenRecord struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	Jti             string      `db:"jti" json:"jti"`
	AgentID         uuid.UUID   `db:"agent_id" json:"agent_id"`
	CredentialID    uuid.UUID   `db:"credential_id" json:"credential_id"`
	TenantID        uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	SignaturePrefix string      `db:"signature_prefix" json:"-"`
	Status          TokenStatus `db:"status" json:"status"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expires_at"`
	RevokedAt       *time.Time  `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

// AuditEvent is one append-only row in the tenant's audit trail. It must
// never carry secret material.
type AuditEvent struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	ActorUserID *uuid.UUID `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Kind        string     `db:"kind" json:"kind"`
	TargetKind  *string    `db:"target_kind" json:"target_kind,omitempty"`
	TargetID    *uuid.UUID `db:"target_id" json:"target_id,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	SourceIP    *string    `db:"source_ip" json:"source_ip,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// QuotaRow is one (agent, month) usage bucket. -1 in a limit field means
// unlimited.
type QuotaRow struct {
	AgentID           uuid.UUID `db:"agent_id" json:"agent_id"`
	TenantID          uuid.UUID `db:"tenant_id" json:"tenant_id"`
	MonthYear         string    `db:"month_year" json:"month_year"`
	APICallsUsed      int       `db:"api_calls_used" json:"api_calls_used"`
	APICallsLimit     int       `db:"api_calls_limit" json:"api_calls_limit"`
	KeyRotationsUsed  int       `db:"key_rotations_used" json:"key_rotations_used"`
	KeyRotationsLimit int       `db:"key_rotations_limit" json:"key_rotations_limit"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// PasswordResetToken supports the supplemented reset flow (SPEC_FULL §6).
type PasswordResetToken struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
}
