package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"
	"backend/pkg/logger"

	"github.com/google/uuid"
)

// roleValuePattern constrains role slugs: lowercase letters, digits, underscore.
var roleValuePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// --- DTOs ---

type CreateRoleRequest struct {
	Value       string   `json:"value" binding:"required"`
	Label       string   `json:"label" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions" binding:"required,min=1"`
}

type UpdateRoleRequest struct {
	Value       *string  `json:"value"`
	Label       *string  `json:"label"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"is_active"`
}

type RoleResponse struct {
	ID          string   `json:"id"`
	Value       string   `json:"value"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	IsSystem    bool     `json:"is_system"`
	IsActive    bool     `json:"is_active"`
	UserCount   int64    `json:"user_count"`
	CreatedAt   string   `json:"created_at"`
}

// RoleOption is the projection used to populate role selects in the UI.
type RoleOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// --- Interface ---

type RoleService interface {
	EnsureSystemRoles(ctx context.Context) error
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, actorID string, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actorID, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actorID, id string) error
	RoleOptions(ctx context.Context) ([]RoleOption, error)
	ListPermissions(ctx context.Context) []model.Permission
	DefaultPermissions(role string) []string
}

type roleService struct {
	roleRepo  repository.RoleRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) RoleService {
	return &roleService{
		roleRepo:  roleRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		hub:       hub,
	}
}

// --- Implementation ---

// EnsureSystemRoles seeds admin/user/viewer when the role collection is
// empty. Idempotent by the emptiness check; two clients racing through it at
// the same instant is a known narrow window, and the unique index on value
// makes the loser fail instead of duplicating.
func (s *roleService) EnsureSystemRoles(ctx context.Context) error {
	total, err := s.roleRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count roles: %w", err)
	}
	if total > 0 {
		return nil
	}

	seeds := []model.Role{
		{
			Value:       model.RoleAdmin,
			Label:       "Administrator",
			Description: "Full access to every feature area and administrative operation",
			Permissions: model.DefaultPermissionsForRole(model.RoleAdmin),
			IsSystem:    true,
			IsActive:    true,
		},
		{
			Value:       model.RoleUser,
			Label:       "User",
			Description: "Day-to-day access to assigned feature areas",
			Permissions: model.DefaultPermissionsForRole(model.RoleUser),
			IsSystem:    true,
			IsActive:    true,
		},
		{
			Value:       model.RoleViewer,
			Label:       "Viewer",
			Description: "Read-only access to assigned feature areas",
			Permissions: model.DefaultPermissionsForRole(model.RoleViewer),
			IsSystem:    true,
			IsActive:    true,
		},
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range seeds {
			if err := s.roleRepo.Create(txCtx, &seeds[i]); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", seeds[i].Value, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		Action:  model.ActionSeedRoles,
		Details: `{"roles":["admin","user","viewer"]}`,
	})
	logger.Info().Msg("seeded system roles")
	return nil
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		r := &roles[i]
		// The stored count is a cache; recompute from the user directory and
		// persist best-effort so list views stay roughly honest.
		count, err := s.userRepo.CountByRole(ctx, r.Value)
		if err == nil && count != r.UserCount {
			r.UserCount = count
			if err := s.roleRepo.UpdateUserCount(ctx, r.ID, count); err != nil {
				logger.Warn().Err(err).Str("role", r.Value).Msg("failed to persist role user count")
			}
		}
		res = append(res, toRoleResponse(*r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, actorID string, req CreateRoleRequest) (*RoleResponse, error) {
	value := strings.ToLower(strings.TrimSpace(req.Value))
	if !roleValuePattern.MatchString(value) {
		return nil, fmt.Errorf("%w: role value must contain only lowercase letters, digits and underscores", ErrValidation)
	}
	if strings.TrimSpace(req.Label) == "" {
		return nil, fmt.Errorf("%w: label is required", ErrValidation)
	}
	for _, p := range req.Permissions {
		if !model.ValidPermission(p) {
			return nil, fmt.Errorf("%w: unknown permission '%s'", ErrValidation, p)
		}
	}

	// Uniqueness is case-insensitive, matching the module registry policy.
	if _, err := s.roleRepo.FindByValue(ctx, value); err == nil {
		return nil, fmt.Errorf("%w: a role with value '%s' already exists", ErrValidation, value)
	}

	role := model.Role{
		Value:       value,
		Label:       req.Label,
		Description: req.Description,
		Permissions: req.Permissions,
		IsSystem:    false,
		IsActive:    true,
		UserCount:   0,
	}

	if err := s.roleRepo.Create(ctx, &role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionCreateRole,
		TargetID:   role.ID.String(),
		TargetName: role.Value,
		Details:    mustJSON(map[string]interface{}{"label": role.Label, "permissions": role.Permissions}),
	})
	s.hub.Publish("role.created", role)
	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) UpdateRole(ctx context.Context, actorID, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Value != nil {
		newValue := strings.ToLower(strings.TrimSpace(*req.Value))
		if role.IsSystem && newValue != role.Value {
			return nil, fmt.Errorf("%w: cannot rename system role '%s'", ErrInvariant, role.Value)
		}
		if newValue != role.Value {
			if !roleValuePattern.MatchString(newValue) {
				return nil, fmt.Errorf("%w: role value must contain only lowercase letters, digits and underscores", ErrValidation)
			}
			if existing, err := s.roleRepo.FindByValue(ctx, newValue); err == nil && existing.ID != role.ID {
				return nil, fmt.Errorf("%w: a role with value '%s' already exists", ErrValidation, newValue)
			}
			role.Value = newValue
		}
	}
	if req.Label != nil {
		role.Label = *req.Label
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		for _, p := range req.Permissions {
			if !model.ValidPermission(p) {
				return nil, fmt.Errorf("%w: unknown permission '%s'", ErrValidation, p)
			}
		}
		role.Permissions = req.Permissions
	}
	if req.IsActive != nil {
		if role.IsSystem && !*req.IsActive {
			return nil, fmt.Errorf("%w: cannot deactivate system role '%s'", ErrInvariant, role.Value)
		}
		role.IsActive = *req.IsActive
	}

	if err := s.roleRepo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionUpdateRole,
		TargetID:   role.ID.String(),
		TargetName: role.Value,
	})
	s.hub.Publish("role.updated", role)
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) DeleteRole(ctx context.Context, actorID, id string) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}

	if role.IsSystem {
		return fmt.Errorf("%w: cannot delete system role '%s'", ErrInvariant, role.Value)
	}

	// The cached count is advisory; the decision uses a live scan.
	count, err := s.userRepo.CountByRole(ctx, role.Value)
	if err != nil {
		return fmt.Errorf("failed to count role users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: role '%s' is still assigned to %d user(s)", ErrInvariant, role.Value, count)
	}

	if err := s.roleRepo.Delete(ctx, role.ID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionDeleteRole,
		TargetID:   role.ID.String(),
		TargetName: role.Value,
	})
	s.hub.Publish("role.deleted", map[string]string{"id": role.ID.String(), "value": role.Value})
	return nil
}

func (s *roleService) RoleOptions(ctx context.Context) ([]RoleOption, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	options := make([]RoleOption, 0, len(roles))
	for _, r := range roles {
		if !r.IsActive {
			continue
		}
		options = append(options, RoleOption{Value: r.Value, Label: r.Label, Description: r.Description})
	}
	return options, nil
}

func (s *roleService) ListPermissions(ctx context.Context) []model.Permission {
	return model.PermissionCatalog
}

func (s *roleService) DefaultPermissions(role string) []string {
	return model.DefaultPermissionsForRole(role)
}

// --- Helpers ---

func (s *roleService) findRole(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id", ErrValidation)
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: role '%s'", ErrNotFound, id)
	}
	return role, nil
}

func toRoleResponse(r model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Value:       r.Value,
		Label:       r.Label,
		Description: r.Description,
		Permissions: r.Permissions,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		UserCount:   r.UserCount,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
