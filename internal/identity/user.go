package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
)

// UserStore persists users within a tenant.
type UserStore struct {
	repo *repository.BaseRepository
}

func NewUserStore(repo *repository.BaseRepository) *UserStore {
	return &UserStore{repo: repo}
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.repo.Get(ctx, &u, repository.SelectUserByIDQuery, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.repo.Get(ctx, &u, repository.SelectUserByEmailQuery, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.ExecRaw(ctx, repository.UpdateUserLastLoginQuery, id)
	return err
}

func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.repo.ExecRaw(ctx, repository.UpdateUserPasswordQuery, id, passwordHash)
	return err
}

func insertUser(ctx context.Context, tx *sqlx.Tx, u *models.User) error {
	_, err := tx.NamedExecContext(ctx, repository.InsertUserQuery, u)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return apperr.Conflictf("a user with email %q already exists", u.Email)
		}
		return apperr.Wrap(apperr.DatabaseError, "failed to insert user", err)
	}
	return nil
}

// BootstrapTenant creates a tenant together with its first (owner) user in
// a single transaction: the tenant row is inserted with a placeholder
// owner, the user is inserted referencing the tenant, and the tenant's
// owner_user_id is then updated to point at the new user — avoiding a
// chicken-and-egg FK cycle between tenants and users.
func (s *TenantStore) BootstrapTenant(ctx context.Context, tenantName, ownerEmail, passwordHash, plan string) (*models.Tenant, *models.User, error) {
	now := time.Now().UTC()
	maxAgents, maxCredentials, maxMonthlyReads := planLimits(plan)

	tenant := &models.Tenant{
		ID:              uuid.New(),
		Name:            tenantName,
		OwnerUserID:     uuid.Nil,
		Plan:            plan,
		MaxAgents:       maxAgents,
		MaxCredentials:  maxCredentials,
		MaxMonthlyReads: maxMonthlyReads,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        ownerEmail,
		PasswordHash: passwordHash,
		TenantID:     tenant.ID,
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, repository.InsertTenantQuery, tenant); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflictf("a tenant named %q already exists", tenantName)
			}
			return apperr.Wrap(apperr.DatabaseError, "failed to insert tenant", err)
		}
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, repository.UpdateTenantOwnerQuery, user.ID, tenant.ID); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "failed to set tenant owner", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	tenant.OwnerUserID = user.ID
	return tenant, user, nil
}

// CreateUser adds an additional user to an existing tenant (invited by an
// admin), outside of the bootstrap path.
func (s *UserStore) CreateUser(ctx context.Context, tenantID uuid.UUID, email, passwordHash string, role models.Role) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		TenantID:     tenantID,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Exec(ctx, repository.InsertUserQuery, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflictf("a user with email %q already exists", email)
		}
		return nil, err
	}
	return user, nil
}
