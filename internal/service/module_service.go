package service

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"
	"backend/pkg/logger"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateModuleRequest struct {
	Value       string `json:"value" binding:"required"`
	Label       string `json:"label" binding:"required"`
	Description string `json:"description" binding:"required"`
	Icon        string `json:"icon" binding:"required"`
	Route       string `json:"route"`
}

type UpdateModuleRequest struct {
	Value       *string `json:"value"`
	Label       *string `json:"label"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Route       *string `json:"route"`
	IsActive    *bool   `json:"is_active"`
}

type ReorderModulesRequest struct {
	OrderedIDs []string `json:"ordered_ids" binding:"required,min=1"`
}

type ModuleResponse struct {
	ID          string `json:"id"`
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Route       string `json:"route,omitempty"`
	IsActive    bool   `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
	UsersCount  int64  `json:"users_count"`
	CreatedAt   string `json:"created_at"`
	CreatedBy   string `json:"created_by"`
	UpdatedAt   string `json:"updated_at"`
	UpdatedBy   string `json:"updated_by"`
}

// DeleteModuleResult reports what a hard delete touched.
type DeleteModuleResult struct {
	Hard          bool  `json:"hard"`
	UsersAffected int64 `json:"users_affected"`
}

// --- Interface ---

type ModuleService interface {
	SeedDefaultModules(ctx context.Context) error
	ListModules(ctx context.Context) ([]ModuleResponse, error)
	ActiveModules(ctx context.Context) ([]ModuleResponse, error)
	GetModule(ctx context.Context, id string) (*ModuleResponse, error)
	CreateModule(ctx context.Context, actorID string, req CreateModuleRequest) (*ModuleResponse, error)
	UpdateModule(ctx context.Context, actorID, id string, req UpdateModuleRequest) (*ModuleResponse, error)
	DeleteModule(ctx context.Context, actorID, id string, hard bool) (*DeleteModuleResult, error)
	ReorderModules(ctx context.Context, actorID string, req ReorderModulesRequest) error
	RefreshUserCounts(ctx context.Context, actorID string) error
}

type moduleService struct {
	moduleRepo repository.ModuleRepository
	userRepo   repository.UserRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        *ws.Hub
}

func NewModuleService(
	moduleRepo repository.ModuleRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) ModuleService {
	return &moduleService{
		moduleRepo: moduleRepo,
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
	}
}

// --- Implementation ---

// SeedDefaultModules creates the console's feature-area catalog when the
// module collection is empty. Same idempotency contract as the role seed.
func (s *moduleService) SeedDefaultModules(ctx context.Context) error {
	total, err := s.moduleRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count modules: %w", err)
	}
	if total > 0 {
		return nil
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i, seed := range model.DefaultModules {
			m := seed
			m.IsActive = true
			m.SortOrder = i
			m.CreatedBy = "system"
			m.UpdatedBy = "system"
			if err := s.moduleRepo.Create(txCtx, &m); err != nil {
				return fmt.Errorf("failed to seed module '%s': %w", m.Value, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		Action:  model.ActionSeedModules,
		Details: mustJSON(map[string]interface{}{"count": len(model.DefaultModules)}),
	})
	logger.Info().Int("count", len(model.DefaultModules)).Msg("seeded default modules")
	return nil
}

func (s *moduleService) ListModules(ctx context.Context) ([]ModuleResponse, error) {
	modules, err := s.moduleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch modules: %w", err)
	}
	res := make([]ModuleResponse, 0, len(modules))
	for _, m := range modules {
		res = append(res, toModuleResponse(m))
	}
	return res, nil
}

func (s *moduleService) ActiveModules(ctx context.Context) ([]ModuleResponse, error) {
	modules, err := s.moduleRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch modules: %w", err)
	}
	res := make([]ModuleResponse, 0, len(modules))
	for _, m := range modules {
		res = append(res, toModuleResponse(m))
	}
	return res, nil
}

func (s *moduleService) GetModule(ctx context.Context, id string) (*ModuleResponse, error) {
	m, err := s.findModule(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toModuleResponse(*m)
	return &resp, nil
}

func (s *moduleService) CreateModule(ctx context.Context, actorID string, req CreateModuleRequest) (*ModuleResponse, error) {
	value := strings.ToLower(strings.TrimSpace(req.Value))
	if err := validateModuleFields(value, req.Label, req.Description, req.Icon); err != nil {
		return nil, err
	}

	// Case-insensitive uniqueness across the collection.
	if _, err := s.moduleRepo.FindByValue(ctx, value); err == nil {
		return nil, fmt.Errorf("%w: a module with value '%s' already exists", ErrValidation, value)
	}

	maxOrder, err := s.moduleRepo.MaxSortOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine module ordering: %w", err)
	}

	m := model.SystemModule{
		Value:       value,
		Label:       strings.TrimSpace(req.Label),
		Description: strings.TrimSpace(req.Description),
		Icon:        strings.TrimSpace(req.Icon),
		Route:       strings.TrimSpace(req.Route),
		IsActive:    true,
		SortOrder:   maxOrder + 1,
		UsersCount:  0,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
	}

	if err := s.moduleRepo.Create(ctx, &m); err != nil {
		return nil, fmt.Errorf("failed to create module: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionCreateModule,
		TargetID:   m.ID.String(),
		TargetName: m.Value,
		Details:    mustJSON(map[string]interface{}{"label": m.Label, "sort_order": m.SortOrder}),
	})
	s.hub.Publish("module.created", m)
	resp := toModuleResponse(m)
	return &resp, nil
}

func (s *moduleService) UpdateModule(ctx context.Context, actorID, id string, req UpdateModuleRequest) (*ModuleResponse, error) {
	m, err := s.findModule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Value != nil {
		newValue := strings.ToLower(strings.TrimSpace(*req.Value))
		if newValue != m.Value {
			if !model.ModuleValuePattern.MatchString(newValue) {
				return nil, fmt.Errorf("%w: module value must match [a-z0-9-_]", ErrValidation)
			}
			// Re-check uniqueness excluding self.
			if existing, err := s.moduleRepo.FindByValue(ctx, newValue); err == nil && existing.ID != m.ID {
				return nil, fmt.Errorf("%w: a module with value '%s' already exists", ErrValidation, newValue)
			}
			m.Value = newValue
		}
	}
	if req.Label != nil {
		if strings.TrimSpace(*req.Label) == "" {
			return nil, fmt.Errorf("%w: label cannot be empty", ErrValidation)
		}
		m.Label = strings.TrimSpace(*req.Label)
	}
	if req.Description != nil {
		m.Description = strings.TrimSpace(*req.Description)
	}
	if req.Icon != nil {
		m.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.Route != nil {
		m.Route = strings.TrimSpace(*req.Route)
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	m.UpdatedBy = actorID

	if err := s.moduleRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionUpdateModule,
		TargetID:   m.ID.String(),
		TargetName: m.Value,
	})
	s.hub.Publish("module.updated", m)
	resp := toModuleResponse(*m)
	return &resp, nil
}

// DeleteModule deactivates (soft) or permanently removes (hard) a module.
// The hard path strips the module's value out of every referencing user's
// module set in the same transaction, so no dangling assignment survives.
func (s *moduleService) DeleteModule(ctx context.Context, actorID, id string, hard bool) (*DeleteModuleResult, error) {
	m, err := s.findModule(ctx, id)
	if err != nil {
		return nil, err
	}

	if !hard {
		// Deactivating an already-inactive module is a success, not an error.
		if !m.IsActive {
			return &DeleteModuleResult{Hard: false, UsersAffected: 0}, nil
		}
		m.IsActive = false
		m.UpdatedBy = actorID
		if err := s.moduleRepo.Update(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to deactivate module: %w", err)
		}
		logAudit(ctx, s.auditRepo, &model.AdminLog{
			ActorID:    actorID,
			Action:     model.ActionDeactivateModule,
			TargetID:   m.ID.String(),
			TargetName: m.Value,
		})
		s.hub.Publish("module.updated", m)
		return &DeleteModuleResult{Hard: false, UsersAffected: 0}, nil
	}

	var affected int64
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		users, err := s.userRepo.ListByModule(txCtx, m.Value)
		if err != nil {
			return fmt.Errorf("failed to list module users: %w", err)
		}

		for i := range users {
			u := &users[i]
			u.Modules = removeValue(u.Modules, m.Value)
			if err := s.userRepo.Update(txCtx, u); err != nil {
				return fmt.Errorf("failed to strip module from user '%s': %w", u.Email, err)
			}
		}
		affected = int64(len(users))

		if err := s.moduleRepo.Delete(txCtx, m.ID); err != nil {
			return fmt.Errorf("failed to delete module: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionDeleteModule,
		TargetID:   m.ID.String(),
		TargetName: m.Value,
		Details:    mustJSON(map[string]interface{}{"users_affected": affected}),
	})
	s.hub.Publish("module.deleted", map[string]interface{}{"id": m.ID.String(), "value": m.Value, "users_affected": affected})
	return &DeleteModuleResult{Hard: true, UsersAffected: affected}, nil
}

// ReorderModules assigns sequential sort order by position in the request.
// Modules absent from the sequence keep their prior order.
func (s *moduleService) ReorderModules(ctx context.Context, actorID string, req ReorderModulesRequest) error {
	ids := make([]uuid.UUID, 0, len(req.OrderedIDs))
	for _, raw := range req.OrderedIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid module id '%s'", ErrValidation, raw)
		}
		ids = append(ids, id)
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for index, id := range ids {
			if _, err := s.moduleRepo.FindByID(txCtx, id); err != nil {
				return fmt.Errorf("%w: module '%s'", ErrNotFound, id)
			}
			if err := s.moduleRepo.UpdateSortOrder(txCtx, id, index); err != nil {
				return fmt.Errorf("failed to reorder module '%s': %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID: actorID,
		Action:  model.ActionReorderModules,
		Details: mustJSON(map[string]interface{}{"ordered_ids": req.OrderedIDs}),
	})
	s.hub.Publish("module.reordered", req.OrderedIDs)
	return nil
}

// RefreshUserCounts recomputes every module's cached user count from the user
// directory in one transaction. O(users × avg modules per user); meant to run
// after bulk assignment changes, not after every single edit.
func (s *moduleService) RefreshUserCounts(ctx context.Context, actorID string) error {
	var modulesSeen, usersScanned int
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		users, err := s.userRepo.ListAll(txCtx)
		if err != nil {
			return fmt.Errorf("failed to scan users: %w", err)
		}

		tally := make(map[string]int64)
		for _, u := range users {
			for _, v := range u.Modules {
				tally[v]++
			}
		}

		modules, err := s.moduleRepo.ListAll(txCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch modules: %w", err)
		}

		for _, m := range modules {
			count := tally[m.Value]
			if count == m.UsersCount {
				continue
			}
			if err := s.moduleRepo.UpdateUsersCount(txCtx, m.ID, count); err != nil {
				return fmt.Errorf("failed to update count for module '%s': %w", m.Value, err)
			}
		}

		modulesSeen = len(modules)
		usersScanned = len(users)
		return nil
	})
	if err != nil {
		return err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID: actorID,
		Action:  model.ActionRecountModules,
		Details: mustJSON(map[string]interface{}{"modules": modulesSeen, "users_scanned": usersScanned}),
	})
	return nil
}

// --- Helpers ---

func (s *moduleService) findModule(ctx context.Context, id string) (*model.SystemModule, error) {
	moduleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid module id", ErrValidation)
	}
	m, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("%w: module '%s'", ErrNotFound, id)
	}
	return m, nil
}

func validateModuleFields(value, label, description, icon string) error {
	if value == "" || !model.ModuleValuePattern.MatchString(value) {
		return fmt.Errorf("%w: module value must match [a-z0-9-_]", ErrValidation)
	}
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: label is required", ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(icon) == "" {
		return fmt.Errorf("%w: icon is required", ErrValidation)
	}
	return nil
}

func removeValue(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func toModuleResponse(m model.SystemModule) ModuleResponse {
	return ModuleResponse{
		ID:          m.ID.String(),
		Value:       m.Value,
		Label:       m.Label,
		Description: m.Description,
		Icon:        m.Icon,
		Route:       m.Route,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
		UsersCount:  m.UsersCount,
		CreatedAt:   m.CreatedAt.Format("2006-01-02 15:04:05"),
		CreatedBy:   m.CreatedBy,
		UpdatedAt:   m.UpdatedAt.Format("2006-01-02 15:04:05"),
		UpdatedBy:   m.UpdatedBy,
	}
}
