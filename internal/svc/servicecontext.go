// Package svc wires the vault's configuration and infrastructure clients
// into every domain service, adapted from the teacher's
// services/gateway/api/internal/svc.ServiceContext pattern: one struct
// built once at startup and threaded through request handlers.
package svc

import (
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/agentkey/internal/agentlifecycle"
	"github.com/suleymanmyradov/agentkey/internal/audit"
	"github.com/suleymanmyradov/agentkey/internal/authplane"
	"github.com/suleymanmyradov/agentkey/internal/credential"
	"github.com/suleymanmyradov/agentkey/internal/ephemeraltoken"
	"github.com/suleymanmyradov/agentkey/internal/identity"
	"github.com/suleymanmyradov/agentkey/internal/quota"
	"github.com/suleymanmyradov/agentkey/pkg/cryptoutil"
	"github.com/suleymanmyradov/agentkey/pkg/sessiontoken"
	"github.com/suleymanmyradov/agentkey/shared/config"
	"github.com/suleymanmyradov/agentkey/shared/repository"
	"github.com/suleymanmyradov/agentkey/third_party/cache"
	"github.com/suleymanmyradov/agentkey/third_party/database"
	"github.com/suleymanmyradov/agentkey/third_party/search"
)

// ServiceContext holds every component a request handler needs:
// infrastructure clients, the base repository, and each domain service
// built on top of it.
type ServiceContext struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *cache.RedisClient
	Search *search.MeiliSearchClient

	Repo *repository.BaseRepository

	Tenants       *identity.TenantStore
	Users         *identity.UserStore
	Agents        *identity.AgentStore
	APIKeys       *identity.APIKeyStore
	Quota         *quota.Service
	Audit         *audit.Service
	Cred          *credential.Service
	Ephemeral     *ephemeraltoken.Service
	Auth          *authplane.Service
	AgentLifecycle *agentlifecycle.Service
}

// New connects to every configured backing store and wires the full
// dependency graph. MeiliSearch is optional: a connection failure there
// is non-fatal, since audit indexing and its supplementary search are
// best-effort (see internal/audit).
func New(cfg *config.Config) (*ServiceContext, error) {
	pg, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.NewRedisConnection(cfg.Redis)
	if err != nil {
		return nil, err
	}

	var meili *search.MeiliSearchClient
	if m, err := search.NewMeiliSearchConnection(cfg.MeiliSearch); err == nil {
		meili = m
	}

	repo := repository.NewBaseRepository(pg)

	cipher, err := cryptoutil.NewCipher(cfg.MasterKey[:])
	if err != nil {
		return nil, err
	}
	sessions, err := sessiontoken.New(cfg.JWTSecret, cfg.JWTExpiry, 0)
	if err != nil {
		return nil, err
	}

	tenants := identity.NewTenantStore(repo)
	users := identity.NewUserStore(repo)
	agents := identity.NewAgentStore(repo)
	apikeys := identity.NewAPIKeyStore(repo, redisClient)
	quotaSvc := quota.New(repo)
	auditSvc := audit.New(repo, meili)
	credSvc := credential.New(repo, cipher, quotaSvc, auditSvc, agents, tenants)
	ephemeralSvc := ephemeraltoken.New(repo, cipher, cfg.JWTSecret, auditSvc)
	authSvc := authplane.New(repo, tenants, users, apikeys, sessions, auditSvc)
	agentLifecycleSvc := agentlifecycle.New(repo, tenants, apikeys, auditSvc)

	return &ServiceContext{
		Config: cfg,

		DB:     pg,
		Redis:  redisClient,
		Search: meili,

		Repo: repo,

		Tenants:        tenants,
		Users:          users,
		Agents:         agents,
		APIKeys:        apikeys,
		Quota:          quotaSvc,
		Audit:          auditSvc,
		Cred:           credSvc,
		Ephemeral:      ephemeralSvc,
		Auth:           authSvc,
		AgentLifecycle: agentLifecycleSvc,
	}, nil
}
