package services

import (
	"context"
	"log/slog"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Audit action constants
const (
	AuditCreate    = "CREATE"
	AuditUpdate    = "UPDATE"
	AuditDelete    = "DELETE"
	AuditApprove   = "APPROVE"
	AuditReject    = "REJECT"
	AuditImplement = "IMPLEMENT"
	AuditLogin     = "LOGIN"
	AuditSync      = "SYNC"
	AuditExport    = "EXPORT"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry. Audit failures never fail the business operation.
func (s *AuditService) Log(ctx context.Context, actor Actor, action, entity, entityKey, details string) {
	entry := &models.AuditLog{
		UserID:    actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityKey: entityKey,
		Details:   details,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to write audit log",
			slog.String("entity", entity),
			slog.String("key", entityKey),
			slog.String("error", err.Error()))
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}
