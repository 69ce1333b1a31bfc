package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

// AgentStore persists agents scoped to a tenant.
type AgentStore struct {
	repo *repository.BaseRepository
}

func NewAgentStore(repo *repository.BaseRepository) *AgentStore {
	return &AgentStore{repo: repo}
}

func (s *AgentStore) Get(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var a models.Agent
	if err := s.repo.Get(ctx, &a, repository.SelectAgentByIDQuery, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AgentStore) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Agent, error) {
	var a models.Agent
	if err := s.repo.Get(ctx, &a, repository.SelectAgentByNameQuery, tenantID, name); err != nil {
		return nil, err
	}
	return &a, nil
}

// CountLive returns the number of non-deleted agents in tenantID, used by
// quota checks (C7) ahead of agent creation.
func (s *AgentStore) CountLive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	if err := s.repo.Get(ctx, &n, repository.CountLiveAgentsByTenantQuery, tenantID); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a new agent row. keyHash is the hash of the API key that
// Issue (apikey.go) will have just generated for it.
func (s *AgentStore) Create(ctx context.Context, tenantID, createdBy uuid.UUID, name, keyHash string) (*models.Agent, error) {
	now := time.Now().UTC()
	agent := &models.Agent{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Name:           name,
		Status:         models.AgentActive,
		CurrentKeyHash: keyHash,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Exec(ctx, repository.InsertAgentQuery, agent); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflictf("an agent named %q already exists in this tenant", name)
		}
		return nil, err
	}
	return agent, nil
}

func (s *AgentStore) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.ExecRaw(ctx, repository.UpdateAgentLastUsedQuery, id)
	return err
}

func (s *AgentStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := s.repo.ExecRaw(ctx, repository.SoftDeleteAgentQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to read rows affected", err)
	}
	if n == 0 {
		return apperr.NotFoundf("agent %s not found", id)
	}
	return nil
}
