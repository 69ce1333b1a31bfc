// Package audit implements the tenant-scoped, append-only audit trail,
// grounded on original_source's log_audit_event call sites (every
// mutating operation across the original logs kind/target/description,
// never secret material) and on the teacher's third_party/search wiring
// for the supplementary MeiliSearch index.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
	"github.com/suleymanmyradov/agentkey/shared/models"
	"github.com/suleymanmyradov/agentkey/shared/repository"
	"github.com/suleymanmyradov/agentkey/third_party/search"
)

// indexDocument mirrors models.AuditEvent's JSON shape with the fields
// MeiliSearch needs to search and filter by; it is intentionally a
// separate type so the search index's shape can drift from the storage
// row without touching models.AuditEvent.
type indexDocument struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Kind        string `json:"kind"`
	TargetKind  string `json:"target_kind,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Service appends and reads audit events. MeiliSearch indexing is
// best-effort: a failure there is logged and never fails the write,
// since Postgres is the single source of truth for the audit trail.
type Service struct {
	repo   *repository.BaseRepository
	search *search.MeiliSearchClient // nil disables indexing
}

func New(repo *repository.BaseRepository, searchClient *search.MeiliSearchClient) *Service {
	return &Service{repo: repo, search: searchClient}
}

// Append records one audit event. actorUserID is nil for agent-initiated
// or system-initiated events. sourceIP is nil when the caller has no
// client address to attach (internal/scheduled operations).
func (s *Service) Append(ctx context.Context, tenantID uuid.UUID, actorUserID *uuid.UUID, kind string, targetKind *string, targetID *uuid.UUID, description *string, sourceIP *string) error {
	event := &models.AuditEvent{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ActorUserID: actorUserID,
		Kind:        kind,
		TargetKind:  targetKind,
		TargetID:    targetID,
		Description: description,
		SourceIP:    sourceIP,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Exec(ctx, repository.InsertAuditEventQuery, event); err != nil {
		return err
	}

	s.indexBestEffort(ctx, event)
	return nil
}

func (s *Service) indexBestEffort(ctx context.Context, event *models.AuditEvent) {
	if s.search == nil {
		return
	}
	doc := indexDocument{
		ID:        event.ID.String(),
		TenantID:  event.TenantID.String(),
		Kind:      event.Kind,
		CreatedAt: event.CreatedAt.Unix(),
	}
	if event.TargetKind != nil {
		doc.TargetKind = *event.TargetKind
	}
	if event.Description != nil {
		doc.Description = *event.Description
	}
	if err := s.search.AddDocuments(search.AuditIndex, []indexDocument{doc}); err != nil {
		logx.WithContext(ctx).Errorf("audit search indexing failed for event %s: %v", event.ID, err)
	}
}

// Get fetches a single audit event, tenant-scoped.
func (s *Service) Get(ctx context.Context, tenantID, eventID uuid.UUID) (*models.AuditEvent, error) {
	var event models.AuditEvent
	if err := s.repo.Get(ctx, &event, repository.SelectAuditEventByIDQuery, eventID, tenantID); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns tenantID's audit trail, newest first, paginated.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var events []models.AuditEvent
	if err := s.repo.Select(ctx, &events, repository.ListAuditEventsByTenantQuery, tenantID, limit, offset); err != nil {
		return nil, err
	}
	return events, nil
}

// Search runs a full-text query against the MeiliSearch audit index,
// restricted to tenantID's own events — a supplemented capability
// (SPEC_FULL §3/§6) the distilled spec's Postgres-only audit list
// doesn't offer.
func (s *Service) Search(_ context.Context, tenantID uuid.UUID, query string, limit int) (*search.SearchResponse, error) {
	if s.search == nil {
		return nil, apperr.New(apperr.InternalError, "audit search is not configured")
	}
	return s.search.SearchFiltered(search.AuditIndex, query, `tenant_id = "`+tenantID.String()+`"`, limit)
}
