package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/logger"
)

// logAudit records an administrative action after the primary mutation has
// committed. Audit entries are advisory: a failed write is logged and never
// fails or rolls back the operation that produced it.
func logAudit(ctx context.Context, repo repository.AuditRepository, entry *model.AdminLog) {
	if err := repo.Log(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to write audit entry")
	}
}

type AdminLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAdminLogs(ctx context.Context, page, limit int) ([]AdminLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) GetAdminLogs(ctx context.Context, page, limit int) ([]AdminLogResponse, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch admin logs: %w", err)
	}

	res := make([]AdminLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, toAdminLogResponse(l))
	}
	return res, total, nil
}

func toAdminLogResponse(l model.AdminLog) AdminLogResponse {
	return AdminLogResponse{
		ID:         l.ID.String(),
		ActorID:    l.ActorID,
		Action:     l.Action,
		TargetID:   l.TargetID,
		TargetName: l.TargetName,
		Details:    l.Details,
		CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
