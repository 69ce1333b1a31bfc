// Package identity owns tenants, users, agents, and agent API keys — the
// principals everything else in the vault is scoped to. Its stores follow
// the teacher's shared/repository.BaseRepository idiom: named queries,
// one Transaction helper for multi-statement writes.
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

// TenantStore persists tenants and resolves the tenant-owner-bootstrap
// transaction shared with UserStore.
type TenantStore struct {
	repo *repository.BaseRepository
}

func NewTenantStore(repo *repository.BaseRepository) *TenantStore {
	return &TenantStore{repo: repo}
}

func (s *TenantStore) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.repo.Get(ctx, &t, repository.SelectTenantByIDQuery, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TenantStore) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.repo.Get(ctx, &t, repository.SelectTenantByNameQuery, name); err != nil {
		return nil, err
	}
	return &t, nil
}

// planLimits maps a plan name to (max_agents, max_credentials,
// max_monthly_reads), mirroring the quota plan table in
// original_source/src/services/quota.rs. Unknown plans fall back to free.
func planLimits(plan string) (maxAgents, maxCredentials, maxMonthlyReads int) {
	switch plan {
	case "enterprise":
		return -1, -1, -1
	case "pro":
		return 50, 500, 100000
	default:
		return 5, 25, 1000
	}
}

// PlanLimits exposes planLimits to callers outside the package; the
// bootstrap transaction inside the package calls planLimits directly.
func PlanLimits(plan string) (maxAgents, maxCredentials, maxMonthlyReads int) {
	return planLimits(plan)
}
