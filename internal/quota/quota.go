// Package quota enforces and tracks per-(agent, month) usage buckets,
// grounded on original_source/src/services/quota.rs: plan-derived limits,
// -1 meaning unlimited, one row per agent per calendar month.
package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

const unlimited = -1

// Service checks and increments agent quota usage.
type Service struct {
	repo *repository.BaseRepository
}

func New(repo *repository.BaseRepository) *Service {
	return &Service{repo: repo}
}

func currentMonthYear() string {
	return time.Now().UTC().Format("2006-01")
}

// PlanLimits maps a plan name to (api_calls_limit, key_rotations_limit).
// Mirrors original_source's quota.rs match arm: enterprise unlimited API
// calls with a 100/mo rotation ceiling, pro 100k/50, everything else
// (including unrecognized plans) the free tier's 1k/5.
func PlanLimits(plan string) (apiCallsLimit, rotationsLimit int) {
	switch plan {
	case "enterprise":
		return unlimited, 100
	case "pro":
		return 100000, 50
	default:
		return 1000, 5
	}
}

// InitializeAgentQuota creates this month's quota row for agentID if one
// doesn't already exist — idempotent so it can be called unconditionally
// on agent creation and lazily on first use.
func (s *Service) InitializeAgentQuota(ctx context.Context, agentID, tenantID uuid.UUID, plan string) error {
	monthYear := currentMonthYear()
	apiLimit, rotationLimit := PlanLimits(plan)

	row := &models.QuotaRow{
		AgentID:           agentID,
		TenantID:          tenantID,
		MonthYear:         monthYear,
		APICallsLimit:     apiLimit,
		KeyRotationsLimit: rotationLimit,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	if err := s.repo.Exec(ctx, repository.InsertQuotaRowQuery, row); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) currentRow(ctx context.Context, agentID uuid.UUID) (*models.QuotaRow, error) {
	var row models.QuotaRow
	err := s.repo.Get(ctx, &row, repository.SelectQuotaRowQuery, agentID, currentMonthYear())
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CheckAPICallQuota reports whether agentID has remaining API-call quota
// for the current month. A missing quota row (never initialized) is
// treated as no quota consumed and no limit configured — callers that
// need a hard ceiling should call InitializeAgentQuota up front.
func (s *Service) CheckAPICallQuota(ctx context.Context, agentID uuid.UUID) (bool, error) {
	row, err := s.currentRow(ctx, agentID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return true, nil
		}
		return false, err
	}
	if row.APICallsLimit == unlimited {
		return true, nil
	}
	return row.APICallsUsed < row.APICallsLimit, nil
}

// IncrementAPICalls records one API call against agentID's current-month
// bucket.
func (s *Service) IncrementAPICalls(ctx context.Context, agentID uuid.UUID) error {
	_, err := s.repo.ExecRaw(ctx, repository.IncrementAPICallsQuery, agentID, currentMonthYear())
	return err
}

// CheckAndIncrementAPICall atomically checks remaining quota and, if
// available, increments usage — the combined operation callers on the hot
// credential-read path actually want, so a check can never race a
// concurrent increment into an overshoot under the service's own control.
func (s *Service) CheckAndIncrementAPICall(ctx context.Context, agentID uuid.UUID) error {
	ok, err := s.CheckAPICallQuota(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "monthly API call quota exceeded")
	}
	return s.IncrementAPICalls(ctx, agentID)
}

// CheckRotationQuota reports whether agentID has remaining key-rotation
// quota for the current month.
func (s *Service) CheckRotationQuota(ctx context.Context, agentID uuid.UUID) (bool, error) {
	row, err := s.currentRow(ctx, agentID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return true, nil
		}
		return false, err
	}
	if row.KeyRotationsLimit == unlimited {
		return true, nil
	}
	return row.KeyRotationsUsed < row.KeyRotationsLimit, nil
}

// IncrementRotations records one credential rotation against agentID's
// current-month bucket.
func (s *Service) IncrementRotations(ctx context.Context, agentID uuid.UUID) error {
	_, err := s.repo.ExecRaw(ctx, repository.IncrementRotationsQuery, agentID, currentMonthYear())
	return err
}

// CheckAndIncrementRotation is CheckAndIncrementAPICall's counterpart for
// credential rotation.
func (s *Service) CheckAndIncrementRotation(ctx context.Context, agentID uuid.UUID) error {
	ok, err := s.CheckRotationQuota(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "monthly key rotation quota exceeded")
	}
	return s.IncrementRotations(ctx, agentID)
}

// CheckAgentLimit reports whether tenantID may create another agent,
// given its plan's max_agents and its current live agent count. -1 (or
// any negative) means unlimited.
func CheckAgentLimit(maxAgents, currentCount int) bool {
	if maxAgents < 0 {
		return true
	}
	return currentCount < maxAgents
}

// CheckCredentialLimit is CheckAgentLimit's counterpart for
// max_credentials.
func CheckCredentialLimit(maxCredentials, currentCount int) bool {
	if maxCredentials < 0 {
		return true
	}
	return currentCount < maxCredentials
}

// CheckCredentialQuota reports whether tenantID may create another
// credential, counting live credentials across every one of its agents
// against maxCredentials (the caller's tenant row supplies the ceiling;
// this package has no tenant store dependency of its own).
func (s *Service) CheckCredentialQuota(ctx context.Context, tenantID uuid.UUID, maxCredentials int) error {
	var count int
	if err := s.repo.Get(ctx, &count, repository.CountLiveCredentialsByTenantQuery, tenantID); err != nil {
		return err
	}
	if !CheckCredentialLimit(maxCredentials, count) {
		return apperr.Conflictf("tenant has reached its credential limit of %d", maxCredentials)
	}
	return nil
}

// Usage is the dashboard-facing view of a quota row — a supplemented
// feature (SPEC_FULL §6) absent from the distilled spec but present in
// original_source's get_quota_usage.
type Usage struct {
	MonthYear         string `json:"month_year"`
	APICallsUsed      int    `json:"api_calls_used"`
	APICallsLimit     int    `json:"api_calls_limit"`
	KeyRotationsUsed  int    `json:"key_rotations_used"`
	KeyRotationsLimit int    `json:"key_rotations_limit"`
}

// GetUsage returns the current month's usage for agentID.
func (s *Service) GetUsage(ctx context.Context, agentID uuid.UUID) (*Usage, error) {
	row, err := s.currentRow(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &Usage{
		MonthYear:         row.MonthYear,
		APICallsUsed:      row.APICallsUsed,
		APICallsLimit:     row.APICallsLimit,
		KeyRotationsUsed:  row.KeyRotationsUsed,
		KeyRotationsLimit: row.KeyRotationsLimit,
	}, nil
}
