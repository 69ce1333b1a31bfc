// Package credential owns envelope-encrypted secrets and their version
// chains, grounded on original_source/src/services/credential.rs:
// create/get/decrypt/update/rotate/list/delete, each tenant-scoped and
// each routed through the audit log except read-only lookups that don't
// touch the plaintext.
package credential

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/agentkey/pkg/cryptoutil"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

const maxNameLen = 255

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// validTypes is the supplemented credential-type catalog (SPEC_FULL §6),
// the closed set original_source's credential_types.rs enforces.
var validTypes = map[string]bool{
	"password":     true,
	"api_key":      true,
	"token":        true,
	"certificate":  true,
	"ssh_key":      true,
	"database_url": true,
	"other":        true,
}

// ValidType reports whether t is a recognized credential type.
func ValidType(t string) bool {
	return validTypes[t]
}

// Recorder is the narrow audit-log dependency credential.Service needs.
// internal/audit.Service satisfies it; defined here (not imported from
// internal/audit) to keep the two packages decoupled.
type Recorder interface {
	Append(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string, sourceIP *string) error
}

// QuotaChecker is the narrow quota dependency credential.Service needs.
type QuotaChecker interface {
	CheckAndIncrementRotation(ctx context.Context, agentID uuid.UUID) error
	CheckCredentialQuota(ctx context.Context, tenantID uuid.UUID, maxCredentials int) error
}

// AgentResolver is the narrow identity dependency credential.Service
// needs to re-check tenant ownership of an agent before listing its
// credentials, satisfied structurally by internal/identity.AgentStore.
type AgentResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// TenantResolver is the narrow identity dependency credential.Service
// needs to read a tenant's credential quota ceiling before creating a
// new credential, satisfied structurally by internal/identity.TenantStore.
type TenantResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// Service implements the credential lifecycle.
type Service struct {
	repo    *repository.BaseRepository
	cipher  *cryptoutil.Cipher
	quota   QuotaChecker
	audit   Recorder
	agents  AgentResolver
	tenants TenantResolver
}

func New(repo *repository.BaseRepository, cipher *cryptoutil.Cipher, quota QuotaChecker, audit Recorder, agents AgentResolver, tenants TenantResolver) *Service {
	return &Service{repo: repo, cipher: cipher, quota: quota, audit: audit, agents: agents, tenants: tenants}
}

func validateName(name string) error {
	if len(name) == 0 || len(name) > maxNameLen {
		return apperr.ValidationErrorf("credential name must be 1-%d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return apperr.ValidationErrorf("credential name may only contain letters, digits, and underscores")
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create encrypts secret under an AAD binding this credential to
// agentID, persists the credential row and its first version, and audits
// the creation.
func (s *Service) Create(ctx context.Context, agentID, tenantID, createdBy uuid.UUID, name, credType, description, secret string, rotationEnabled bool, rotationIntervalDays int) (*models.Credential, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !ValidType(credType) {
		return nil, apperr.ValidationErrorf("unrecognized credential type %q", credType)
	}
	if secret == "" {
		return nil, apperr.ValidationErrorf("secret must not be empty")
	}

	if s.quota != nil && s.tenants != nil {
		tenant, err := s.tenants.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if err := s.quota.CheckCredentialQuota(ctx, tenantID, tenant.MaxCredentials); err != nil {
			return nil, err
		}
	}

	credentialID := uuid.New()
	aad := cryptoutil.AAD(agentID, credentialID)
	encrypted, err := s.cipher.Encrypt([]byte(secret), aad)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &models.Credential{
		ID:                   credentialID,
		AgentID:              agentID,
		TenantID:             tenantID,
		Name:                 name,
		Type:                 credType,
		Description:          description,
		EncryptedValue:       encrypted,
		Active:               true,
		RotationEnabled:      rotationEnabled,
		RotationIntervalDays: rotationIntervalDays,
		NextRotationDue:      nextRotationDue(rotationEnabled, rotationIntervalDays, now),
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, repository.InsertCredentialQuery, cred); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflictf("a credential named %q already exists for this agent", name)
			}
			return apperr.Wrap(apperr.DatabaseError, "failed to insert credential", err)
		}
		version := &models.CredentialVersion{
			ID:             uuid.New(),
			CredentialID:   credentialID,
			Version:        1,
			EncryptedValue: encrypted,
			Status:         models.VersionActive,
			CreatedAt:      now,
		}
		if _, err := tx.NamedExecContext(ctx, repository.InsertCredentialVersionQuery, version); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to insert credential version", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "credential.create"
	targetKind := "credential"
	s.auditBestEffort(ctx, tenantID, &createdBy, kind, &targetKind, &credentialID, strPtr("created credential "+name))
	return cred, nil
}

func nextRotationDue(enabled bool, intervalDays int, from time.Time) *time.Time {
	if !enabled || intervalDays <= 0 {
		return nil
	}
	due := from.AddDate(0, 0, intervalDays)
	return &due
}

func (s *Service) mustOwn(cred *models.Credential, tenantID uuid.UUID) error {
	if cred.TenantID != tenantID {
		return apperr.Forbiddenf("access denied to this credential")
	}
	return nil
}

// Get fetches a credential's metadata (never the plaintext secret).
func (s *Service) Get(ctx context.Context, tenantID, credentialID uuid.UUID) (*models.Credential, error) {
	var cred models.Credential
	if err := s.repo.Get(ctx, &cred, repository.SelectCredentialByIDQuery, credentialID); err != nil {
		return nil, err
	}
	if err := s.mustOwn(&cred, tenantID); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Decrypt fetches and decrypts a credential's secret, touches its
// last-accessed timestamp, and audits the read without ever logging the
// plaintext.
func (s *Service) Decrypt(ctx context.Context, tenantID, credentialID uuid.UUID) (string, *models.Credential, error) {
	var cred models.Credential
	if err := s.repo.Get(ctx, &cred, repository.SelectCredentialByIDQuery, credentialID); err != nil {
		return "", nil, err
	}
	if err := s.mustOwn(&cred, tenantID); err != nil {
		return "", nil, err
	}

	aad := cryptoutil.AAD(cred.AgentID, cred.ID)
	plaintext, err := s.cipher.Decrypt(cred.EncryptedValue, aad)
	if err != nil {
		return "", nil, err
	}

	if _, err := s.repo.ExecRaw(ctx, repository.UpdateCredentialLastAccessedQuery, credentialID); err != nil {
		return "", nil, err
	}

	targetKind := "credential"
	s.auditBestEffort(ctx, tenantID, nil, "credential.decrypt", &targetKind, &credentialID, strPtr("secret decrypted"))
	return string(plaintext), &cred, nil
}

// Update changes non-secret metadata: description, rotation policy.
func (s *Service) Update(ctx context.Context, tenantID, credentialID uuid.UUID, description *string, rotationEnabled *bool, rotationIntervalDays *int) (*models.Credential, error) {
	cred, err := s.Get(ctx, tenantID, credentialID)
	if err != nil {
		return nil, err
	}

	desc := cred.Description
	if description != nil {
		desc = *description
	}
	enabled := cred.RotationEnabled
	if rotationEnabled != nil {
		enabled = *rotationEnabled
	}
	interval := cred.RotationIntervalDays
	if rotationIntervalDays != nil {
		interval = *rotationIntervalDays
	}
	due := nextRotationDue(enabled, interval, time.Now().UTC())

	if _, err := s.repo.ExecRaw(ctx, repository.UpdateCredentialMetadataQuery, credentialID, desc, enabled, interval, due); err != nil {
		return nil, err
	}

	cred.Description = desc
	cred.RotationEnabled = enabled
	cred.RotationIntervalDays = interval
	cred.NextRotationDue = due

	targetKind := "credential"
	s.auditBestEffort(ctx, tenantID, nil, "credential.update", &targetKind, &credentialID, strPtr("updated credential metadata"))
	return cred, nil
}

// Rotate re-encrypts credentialID under a fresh ciphertext, supersedes
// the current active version, and inserts the new one — requires
// rotation_enabled and the agent's monthly rotation quota to have
// remaining headroom.
func (s *Service) Rotate(ctx context.Context, tenantID, credentialID uuid.UUID, newSecret string) (*models.Credential, error) {
	if newSecret == "" {
		return nil, apperr.ValidationErrorf("new secret must not be empty")
	}

	cred, err := s.Get(ctx, tenantID, credentialID)
	if err != nil {
		return nil, err
	}
	if !cred.RotationEnabled {
		return nil, apperr.ValidationErrorf("rotation is not enabled for this credential")
	}
	if s.quota != nil {
		if err := s.quota.CheckAndIncrementRotation(ctx, cred.AgentID); err != nil {
			return nil, err
		}
	}

	aad := cryptoutil.AAD(cred.AgentID, cred.ID)
	encrypted, err := s.cipher.Encrypt([]byte(newSecret), aad)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	due := nextRotationDue(cred.RotationEnabled, cred.RotationIntervalDays, now)

	err = s.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, repository.SupersedeActiveVersionQuery, credentialID); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to supersede active version", err)
		}
		var maxVersion int
		if err := tx.GetContext(ctx, &maxVersion, repository.SelectMaxVersionQuery, credentialID); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to read max version", err)
		}
		version := &models.CredentialVersion{
			ID:             uuid.New(),
			CredentialID:   credentialID,
			Version:        maxVersion + 1,
			EncryptedValue: encrypted,
			Status:         models.VersionActive,
			CreatedAt:      now,
		}
		if _, err := tx.NamedExecContext(ctx, repository.InsertCredentialVersionQuery, version); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to insert credential version", err)
		}
		if _, err := tx.ExecContext(ctx, repository.UpdateCredentialAfterRotationQuery, credentialID, encrypted, due); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to update credential after rotation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cred.EncryptedValue = encrypted
	cred.LastRotatedAt = &now
	cred.NextRotationDue = due

	targetKind := "credential"
	s.auditBestEffort(ctx, tenantID, nil, "credential.rotate", &targetKind, &credentialID, strPtr("credential rotated"))
	return cred, nil
}

// List returns credentials belonging to agentID, newest first, paginated.
// agentID's own tenant is re-checked against tenantID so a caller can
// never list another tenant's agent's credentials by guessing its id.
func (s *Service) List(ctx context.Context, tenantID, agentID uuid.UUID, limit, offset int) ([]models.Credential, error) {
	if s.agents != nil {
		agent, err := s.agents.Get(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if agent.TenantID != tenantID {
			return nil, apperr.Forbiddenf("access denied to this agent's credentials")
		}
	}
	var creds []models.Credential
	if err := s.repo.Select(ctx, &creds, repository.ListCredentialsByAgentQuery, agentID, limit, offset); err != nil {
		return nil, err
	}
	return creds, nil
}

// Versions returns credentialID's version history, newest first — a
// supplemented read (SPEC_FULL §6) mirroring original_source's
// get_versions, minus any secret material.
func (s *Service) Versions(ctx context.Context, tenantID, credentialID uuid.UUID) ([]models.CredentialVersion, error) {
	if _, err := s.Get(ctx, tenantID, credentialID); err != nil {
		return nil, err
	}
	var versions []models.CredentialVersion
	if err := s.repo.Select(ctx, &versions, repository.ListVersionsByCredentialQuery, credentialID); err != nil {
		return nil, err
	}
	return versions, nil
}

// Delete soft-deletes a credential and audits the deletion.
func (s *Service) Delete(ctx context.Context, tenantID, credentialID uuid.UUID) error {
	cred, err := s.Get(ctx, tenantID, credentialID)
	if err != nil {
		return err
	}
	if _, err := s.repo.ExecRaw(ctx, repository.SoftDeleteCredentialQuery, cred.ID); err != nil {
		return err
	}
	targetKind := "credential"
	s.auditBestEffort(ctx, tenantID, nil, "credential.delete", &targetKind, &credentialID, strPtr("soft deleted credential"))
	return nil
}

func (s *Service) auditBestEffort(ctx context.Context, tenantID uuid.UUID, actor *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, tenantID, actor, kind, targetKind, targetID, description, nil)
}
