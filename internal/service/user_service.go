package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// --- DTOs ---

type CreateUserRequest struct {
	Email       string   `json:"email" binding:"required,email"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password" binding:"required,min=6"`
	Role        string   `json:"role" binding:"required"`
	Permissions []string `json:"permissions"` // Empty = role defaults
	Modules     []string `json:"modules"`
}

type UpdateUserRequest struct {
	Email       *string  `json:"email" binding:"omitempty,email"`
	DisplayName *string  `json:"display_name"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
	Modules     []string `json:"modules"`
	IsActive    *bool    `json:"is_active"`
}

type BulkDeleteUsersRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type UserResponse struct {
	ID            string   `json:"id"`
	UID           string   `json:"uid,omitempty"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"display_name"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	Modules       []string `json:"modules"`
	IsActive      bool     `json:"is_active"`
	AccountStatus string   `json:"account_status"`
	CreatedAt     string   `json:"created_at"`
	CreatedBy     string   `json:"created_by"`
	LastLogin     string   `json:"last_login,omitempty"`
}

// --- Interface ---

type UserService interface {
	FindUser(ctx context.Context, identifier string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*UserResponse, error)
	UpdateUser(ctx context.Context, actorID, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actorID, id string) error
	DeleteUsers(ctx context.Context, actorID string, req BulkDeleteUsersRequest) (int, error)
}

type userService struct {
	userRepo   repository.UserRepository
	moduleRepo repository.ModuleRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        *ws.Hub
}

func NewUserService(
	userRepo repository.UserRepository,
	moduleRepo repository.ModuleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) UserService {
	return &userService{
		userRepo:   userRepo,
		moduleRepo: moduleRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
	}
}

// --- Implementation ---

// FindUser resolves an ambiguous identifier by probing in a fixed order:
// email shape first, then uid, then document id.
func (s *userService) FindUser(ctx context.Context, identifier string) (*UserResponse, error) {
	user, err := s.resolveUser(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, *toUserResponse(&users[i]))
	}
	return res, total, nil
}

func (s *userService) CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email '%s' is already registered", ErrValidation, email)
	}

	// No explicit permissions: suggest the role's default set. The mapping
	// table is the single source of truth for that suggestion.
	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = model.DefaultPermissionsForRole(req.Role)
	}
	if len(permissions) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", ErrValidation)
	}
	for _, p := range permissions {
		if !model.ValidPermission(p) {
			return nil, fmt.Errorf("%w: unknown permission '%s'", ErrValidation, p)
		}
	}

	if err := s.validateModules(ctx, req.Modules); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.AuthorizedUser{
		Email:         email,
		DisplayName:   strings.TrimSpace(req.DisplayName),
		Password:      string(hashed),
		Role:          req.Role,
		Permissions:   permissions,
		Modules:       normalizeModules(req.Modules),
		IsActive:      true,
		AccountStatus: model.AccountStatusPending,
		CreatedBy:     actorID,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionCreateUser,
		TargetID:   user.ID.String(),
		TargetName: user.Email,
		Details:    mustJSON(map[string]interface{}{"role": user.Role, "modules": user.Modules}),
	})
	s.hub.Publish("user.created", toUserResponse(user))
	return toUserResponse(user), nil
}

func (s *userService) UpdateUser(ctx context.Context, actorID, id string, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.resolveUser(ctx, id)
	if err != nil {
		return nil, err
	}

	wasActiveAdmin := user.Role == model.RoleAdmin && user.IsActive

	if req.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*req.Email))
		if newEmail != user.Email {
			if !emailPattern.MatchString(newEmail) {
				return nil, fmt.Errorf("%w: invalid email format", ErrValidation)
			}
			if existing, err := s.userRepo.FindByEmail(ctx, newEmail); err == nil && existing.ID != user.ID {
				return nil, fmt.Errorf("%w: email '%s' is already registered", ErrValidation, newEmail)
			}
			user.Email = newEmail
		}
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Role != nil && *req.Role != user.Role {
		user.Role = *req.Role
		// Role changes suggest a fresh permission set only when the caller
		// did not send explicit permissions in the same request.
		if req.Permissions == nil {
			user.Permissions = model.DefaultPermissionsForRole(user.Role)
		}
	}
	if req.Permissions != nil {
		if len(req.Permissions) == 0 {
			return nil, fmt.Errorf("%w: at least one permission is required", ErrValidation)
		}
		for _, p := range req.Permissions {
			if !model.ValidPermission(p) {
				return nil, fmt.Errorf("%w: unknown permission '%s'", ErrValidation, p)
			}
		}
		user.Permissions = req.Permissions
	}
	if req.Modules != nil {
		if err := s.validateModules(ctx, req.Modules); err != nil {
			return nil, err
		}
		user.Modules = normalizeModules(req.Modules)
	}
	if req.IsActive != nil {
		if !*req.IsActive && s.isSelf(user, actorID) {
			return nil, fmt.Errorf("%w: you cannot deactivate your own account", ErrInvariant)
		}
		user.IsActive = *req.IsActive
	}

	// Demoting or deactivating the last active admin would lock everyone out.
	if wasActiveAdmin && (user.Role != model.RoleAdmin || !user.IsActive) {
		admins, err := s.userRepo.CountActiveAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return nil, fmt.Errorf("%w: the system must retain at least one active admin", ErrInvariant)
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionUpdateUser,
		TargetID:   user.ID.String(),
		TargetName: user.Email,
	})
	s.hub.Publish("user.updated", toUserResponse(user))
	return toUserResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, actorID, id string) error {
	user, err := s.resolveUser(ctx, id)
	if err != nil {
		return err
	}

	if s.isSelf(user, actorID) {
		return fmt.Errorf("%w: you cannot delete your own account", ErrInvariant)
	}

	if user.Role == model.RoleAdmin && user.IsActive {
		admins, err := s.userRepo.CountActiveAdmins(ctx)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return fmt.Errorf("%w: cannot delete the last active admin", ErrInvariant)
		}
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID:    actorID,
		Action:     model.ActionDeleteUser,
		TargetID:   user.ID.String(),
		TargetName: user.Email,
	})
	s.hub.Publish("user.deleted", map[string]string{"id": user.ID.String(), "email": user.Email})
	return nil
}

// DeleteUsers removes a batch of accounts. The last-admin invariant is checked
// against the whole batch: if removing every admin in the batch would leave
// zero active admins, the entire batch is rejected (abort-all, the stricter of
// the two possible policies). Self-deletion rejects the batch as well.
func (s *userService) DeleteUsers(ctx context.Context, actorID string, req BulkDeleteUsersRequest) (int, error) {
	targets := make([]*model.AuthorizedUser, 0, len(req.IDs))
	seen := make(map[uuid.UUID]bool, len(req.IDs))
	for _, raw := range req.IDs {
		user, err := s.resolveUser(ctx, raw)
		if err != nil {
			return 0, err
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		if s.isSelf(user, actorID) {
			return 0, fmt.Errorf("%w: the batch includes your own account", ErrInvariant)
		}
		targets = append(targets, user)
	}

	var adminsInBatch int64
	for _, u := range targets {
		if u.Role == model.RoleAdmin && u.IsActive {
			adminsInBatch++
		}
	}
	if adminsInBatch > 0 {
		admins, err := s.userRepo.CountActiveAdmins(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins-adminsInBatch < 1 {
			return 0, fmt.Errorf("%w: batch would remove every active admin", ErrInvariant)
		}
	}

	ids := make([]uuid.UUID, 0, len(targets))
	emails := make([]string, 0, len(targets))
	for _, u := range targets {
		ids = append(ids, u.ID)
		emails = append(emails, u.Email)
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.DeleteMany(txCtx, ids); err != nil {
			return fmt.Errorf("failed to delete users: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logAudit(ctx, s.auditRepo, &model.AdminLog{
		ActorID: actorID,
		Action:  model.ActionBulkDeleteUsers,
		Details: mustJSON(map[string]interface{}{"emails": emails}),
	})
	s.hub.Publish("user.bulk_deleted", emails)
	return len(targets), nil
}

// --- Helpers ---

// resolveUser tries email first, then uid, then document id.
func (s *userService) resolveUser(ctx context.Context, identifier string) (*model.AuthorizedUser, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty user identifier", ErrValidation)
	}

	if emailPattern.MatchString(identifier) {
		if user, err := s.userRepo.FindByEmail(ctx, identifier); err == nil {
			return user, nil
		}
	}

	if user, err := s.userRepo.FindByUID(ctx, identifier); err == nil {
		return user, nil
	}

	if docID, err := uuid.Parse(identifier); err == nil {
		if user, err := s.userRepo.FindByDocID(ctx, docID); err == nil {
			return user, nil
		}
	}

	return nil, fmt.Errorf("%w: user '%s'", ErrNotFound, identifier)
}

// isSelf matches the acting session against the target by uid, doc id or email.
func (s *userService) isSelf(user *model.AuthorizedUser, actorID string) bool {
	if actorID == "" {
		return false
	}
	return actorID == user.UID ||
		actorID == user.ID.String() ||
		strings.EqualFold(actorID, user.Email)
}

func (s *userService) validateModules(ctx context.Context, modules []string) error {
	for _, v := range modules {
		if _, err := s.moduleRepo.FindByValue(ctx, v); err != nil {
			return fmt.Errorf("%w: unknown module '%s'", ErrValidation, v)
		}
	}
	return nil
}

func normalizeModules(modules []string) []string {
	out := make([]string, 0, len(modules))
	for _, v := range modules {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}

func toUserResponse(u *model.AuthorizedUser) *UserResponse {
	resp := &UserResponse{
		ID:            u.ID.String(),
		UID:           u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		Permissions:   u.Permissions,
		Modules:       u.Modules,
		IsActive:      u.IsActive,
		AccountStatus: u.AccountStatus,
		CreatedAt:     u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		CreatedBy:     u.CreatedBy,
	}
	if u.LastLogin != nil {
		resp.LastLogin = u.LastLogin.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
