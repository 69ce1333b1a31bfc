package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/pkg/apikey"
	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
	"github.com/suleymanmyradov/agentkey/third_party/cache"
)

const apiKeyCacheTTL = 5 * time.Minute

func apiKeyCacheKey(hash string) string {
	return "agentkey:apikey:" + hash
}

// APIKeyStore issues and resolves agent API keys. Resolution is a
// read-through cache in front of Postgres: Redis is consulted first for
// the hash-to-agent-id mapping, and Postgres — which remains the only
// place status/soft-delete is authoritative — is always the fallback and
// the only place a cache write is refreshed from.
type APIKeyStore struct {
	repo  *repository.BaseRepository
	cache *cache.RedisClient // nil disables the cache, not an error
}

func NewAPIKeyStore(repo *repository.BaseRepository, rc *cache.RedisClient) *APIKeyStore {
	return &APIKeyStore{repo: repo, cache: rc}
}

// Issue generates a fresh API key, persists its hash, and returns the raw
// key exactly once — callers must surface it to the operator immediately,
// as it can never be recovered afterward.
func (s *APIKeyStore) Issue(ctx context.Context, agentID uuid.UUID) (rawKey string, err error) {
	rawKey = apikey.Generate()
	hash := apikey.Hash(rawKey)

	record := &models.AgentAPIKey{
		ID:        uuid.New(),
		AgentID:   agentID,
		KeyHash:   hash,
		Status:    models.APIKeyActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Exec(ctx, repository.InsertAgentAPIKeyQuery, record); err != nil {
		return "", err
	}
	return rawKey, nil
}

// FindAgentByHash resolves a key hash to its live, active agent. Postgres
// is the source of truth: a cache hit is re-read from Postgres and used
// only if that agent still resolves and is active, otherwise the
// authoritative join runs. Entries expire within apiKeyCacheTTL and are
// evicted eagerly on revoke.
func (s *APIKeyStore) FindAgentByHash(ctx context.Context, hash string) (*models.Agent, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, apiKeyCacheKey(hash)); ok {
			agentID, err := uuid.Parse(cached)
			if err == nil {
				if agent, err := s.agentByIDFresh(ctx, agentID); err == nil {
					return agent, nil
				}
				// Cache pointed at an agent that's no longer resolvable
				// (revoked/deleted since caching) — fall through to the
				// authoritative join and let it evict the stale entry.
			}
		}
	}

	var agent models.Agent
	if err := s.repo.Get(ctx, &agent, repository.SelectAgentByAPIKeyHashQuery, hash); err != nil {
		if s.cache != nil {
			_ = s.cache.Del(ctx, apiKeyCacheKey(hash))
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, apiKeyCacheKey(hash), agent.ID.String(), apiKeyCacheTTL); err != nil {
			logx.WithContext(ctx).Errorf("apikey cache set failed: %v", err)
		}
	}
	return &agent, nil
}

func (s *APIKeyStore) agentByIDFresh(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.repo.Get(ctx, &agent, repository.SelectAgentByIDQuery, id); err != nil {
		return nil, err
	}
	if agent.Status != models.AgentActive {
		return nil, apperr.New(apperr.Unauthorized, "agent is not active")
	}
	return &agent, nil
}

// ListForAgent returns every key ever issued to agentID, newest first —
// a supplemented feature (SPEC_FULL §6) for the key-history view.
func (s *APIKeyStore) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentAPIKey, error) {
	var keys []models.AgentAPIKey
	if err := s.repo.Select(ctx, &keys, repository.ListAPIKeysForAgentQuery, agentID); err != nil {
		return nil, err
	}
	return keys, nil
}

// RevokeAll revokes every active key for agentID and evicts any cached
// hash-to-agent mapping it can — a supplemented bulk-revoke operation
// used when an agent is suspended or deleted.
func (s *APIKeyStore) RevokeAll(ctx context.Context, agentID uuid.UUID) error {
	keys, err := s.ListForAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if _, err := s.repo.ExecRaw(ctx, repository.RevokeAllAPIKeysForAgentQuery, agentID); err != nil {
		return err
	}
	if s.cache != nil {
		for _, k := range keys {
			if k.Status != models.APIKeyActive {
				continue
			}
			if err := s.cache.Del(ctx, apiKeyCacheKey(k.KeyHash)); err != nil {
				logx.WithContext(ctx).Errorf("apikey cache evict failed for key %s: %v", k.ID, err)
			}
		}
	}
	return nil
}
