// Package agentlifecycle composes the multi-store operations spec.md
// scopes to an agent's creation and deletion, grounded on
// original_source/src/services/agent.rs's create_agent/delete_agent:
// check the tenant's agent cap, insert the agent/key/quota rows as one
// transaction, and revoke every outstanding key on delete.
package agentlifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/internal/quota"
	"github.com/suleymanmyradov/agentkey/pkg/apikey"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

// TenantResolver is the narrow identity dependency this package needs to
// read a tenant's plan and agent cap, satisfied structurally by
// internal/identity.TenantStore.
type TenantResolver interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// APIKeyRevoker is the narrow identity dependency this package needs to
// revoke every key belonging to a deleted agent, satisfied structurally
// by internal/identity.APIKeyStore.
type APIKeyRevoker interface {
	RevokeAll(ctx context.Context, agentID uuid.UUID) error
}

// Recorder is the narrow audit dependency this package needs.
type Recorder interface {
	Append(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string, sourceIP *string) error
}

// Service composes agent creation and deletion across the identity,
// quota, and audit stores.
type Service struct {
	repo    *repository.BaseRepository
	tenants TenantResolver
	apikeys APIKeyRevoker
	audit   Recorder
}

func New(repo *repository.BaseRepository, tenants TenantResolver, apikeys APIKeyRevoker, audit Recorder) *Service {
	return &Service{repo: repo, tenants: tenants, apikeys: apikeys, audit: audit}
}

func strPtr(s string) *string { return &s }

func (s *Service) auditBestEffort(ctx context.Context, tenantID uuid.UUID, actor *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, tenantID, actor, kind, targetKind, targetID, description, nil); err != nil {
		logx.WithContext(ctx).Errorf("audit append failed for %s: %v", kind, err)
	}
}

// CreateResult carries the newly created agent plus its one-time raw API
// key — the key is never retrievable again once this call returns.
type CreateResult struct {
	Agent  *models.Agent
	APIKey string
}

// CreateAgent checks tenantID's agent cap, then inserts the agent row,
// its first API key, and this month's quota row inside a single
// transaction — mirroring original_source's create_agent, which runs the
// same three writes under one database transaction.
func (s *Service) CreateAgent(ctx context.Context, tenantID, createdBy uuid.UUID, name string) (*CreateResult, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var liveCount int
	if err := s.repo.Get(ctx, &liveCount, repository.CountLiveAgentsByTenantQuery, tenantID); err != nil {
		return nil, err
	}
	if !quota.CheckAgentLimit(tenant.MaxAgents, liveCount) {
		return nil, apperr.Conflictf("tenant has reached its agent limit of %d", tenant.MaxAgents)
	}

	rawKey := apikey.Generate()
	keyHash := apikey.Hash(rawKey)

	now := time.Now().UTC()
	agentID := uuid.New()
	agent := &models.Agent{
		ID:             agentID,
		TenantID:       tenantID,
		Name:           name,
		Status:         models.AgentActive,
		CurrentKeyHash: keyHash,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	key := &models.AgentAPIKey{
		ID:        uuid.New(),
		AgentID:   agentID,
		KeyHash:   keyHash,
		Status:    models.APIKeyActive,
		CreatedAt: now,
	}
	apiLimit, rotationLimit := quota.PlanLimits(tenant.Plan)
	quotaRow := &models.QuotaRow{
		AgentID:           agentID,
		TenantID:          tenantID,
		MonthYear:         now.Format("2006-01"),
		APICallsLimit:     apiLimit,
		KeyRotationsLimit: rotationLimit,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, repository.InsertAgentQuery, agent); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflictf("an agent named %q already exists in this tenant", name)
			}
			return apperr.Wrap(apperr.DatabaseError, "failed to insert agent", err)
		}
		if _, err := tx.NamedExecContext(ctx, repository.InsertAgentAPIKeyQuery, key); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to insert agent api key", err)
		}
		if _, err := tx.NamedExecContext(ctx, repository.InsertQuotaRowQuery, quotaRow); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to insert quota row", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	targetKind := "agent"
	s.auditBestEffort(ctx, tenantID, &createdBy, "agent.create", &targetKind, &agentID, strPtr("created agent "+name))

	return &CreateResult{Agent: agent, APIKey: rawKey}, nil
}

// DeleteAgent soft-deletes agentID after confirming it belongs to
// tenantID, and revokes every API key ever issued to it — spec.md treats
// key revocation as a correctness invariant of deletion, so unlike the
// best-effort audit append, its error propagates rather than being
// swallowed.
func (s *Service) DeleteAgent(ctx context.Context, tenantID, agentID uuid.UUID) error {
	var agent models.Agent
	if err := s.repo.Get(ctx, &agent, repository.SelectAgentByIDQuery, agentID); err != nil {
		return err
	}
	if agent.TenantID != tenantID {
		return apperr.Forbiddenf("access denied to this agent")
	}

	res, err := s.repo.ExecRaw(ctx, repository.SoftDeleteAgentQuery, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to read rows affected", err)
	}
	if n == 0 {
		return apperr.NotFoundf("agent %s not found", agentID)
	}

	if err := s.apikeys.RevokeAll(ctx, agentID); err != nil {
		return err
	}

	targetKind := "agent"
	s.auditBestEffort(ctx, tenantID, nil, "agent.delete", &targetKind, &agentID, strPtr("soft deleted agent "+agent.Name))
	return nil
}
