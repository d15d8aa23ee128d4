package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
)

func setupUserService() (UserService, *fakeUserRepo, *fakeModuleRepo) {
	userRepo := &fakeUserRepo{}
	moduleRepo := &fakeModuleRepo{
		modules: []model.SystemModule{
			{ID: uuid.New(), Value: "clients", IsActive: true},
			{ID: uuid.New(), Value: "workers", IsActive: true},
		},
	}
	svc := NewUserService(userRepo, moduleRepo, &fakeAuditRepo{}, fakeTxManager{}, nil)
	return svc, userRepo, moduleRepo
}

func seedAdmin(repo *fakeUserRepo, email string) model.AuthorizedUser {
	u := model.AuthorizedUser{
		ID: uuid.New(), UID: "uid-" + email, Email: email,
		Role: model.RoleAdmin, Permissions: []string{model.PermRead},
		IsActive: true, AccountStatus: model.AccountStatusActive,
	}
	repo.users = append(repo.users, u)
	return u
}

func TestCreateUserDefaultsPermissionsFromRole(t *testing.T) {
	svc, _, _ := setupUserService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "actor-1", CreateUserRequest{
		Email:    "New.User@Example.com",
		Password: "secret123",
		Role:     model.RoleViewer,
		Modules:  []string{"clients"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if created.Email != "new.user@example.com" {
		t.Errorf("email = %q, want lowercased", created.Email)
	}
	if len(created.Permissions) == 0 {
		t.Fatal("expected role-default permissions")
	}
	if created.Permissions[0] != model.PermRead {
		t.Errorf("viewer default = %v, want [read]", created.Permissions)
	}
	if created.AccountStatus != model.AccountStatusPending {
		t.Errorf("new account status = %q, want pending", created.AccountStatus)
	}
	if created.UID != "" {
		t.Errorf("uid should be empty until first login, got %q", created.UID)
	}
}

func TestCreateUserRejectsDuplicateEmailAnyCase(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	seedAdmin(userRepo, "admin@example.com")

	_, err := svc.CreateUser(ctx, "actor-1", CreateUserRequest{
		Email: "ADMIN@example.com", Password: "secret123", Role: model.RoleUser,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate email, got %v", err)
	}
}

func TestCreateUserRejectsUnknownModule(t *testing.T) {
	svc, _, _ := setupUserService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "actor-1", CreateUserRequest{
		Email: "a@example.com", Password: "secret123", Role: model.RoleUser,
		Modules: []string{"nonexistent"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown module, got %v", err)
	}
}

func TestDeleteLastAdminRejected(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	a := seedAdmin(userRepo, "a@example.com")
	b := seedAdmin(userRepo, "b@example.com")

	// Two admins: deleting the first succeeds.
	if err := svc.DeleteUser(ctx, "someone-else", a.ID.String()); err != nil {
		t.Fatalf("deleting first admin failed: %v", err)
	}

	// B is now the sole admin; deleting them must be rejected.
	err := svc.DeleteUser(ctx, "someone-else", b.ID.String())
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant deleting last admin, got %v", err)
	}
	if len(userRepo.users) != 1 {
		t.Errorf("last admin should survive, %d users remain", len(userRepo.users))
	}
}

func TestDemoteLastAdminRejected(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	a := seedAdmin(userRepo, "a@example.com")

	newRole := model.RoleUser
	_, err := svc.UpdateUser(ctx, "someone-else", a.ID.String(), UpdateUserRequest{Role: &newRole})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant demoting last admin, got %v", err)
	}

	inactive := false
	_, err = svc.UpdateUser(ctx, "someone-else", a.ID.String(), UpdateUserRequest{IsActive: &inactive})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant deactivating last admin, got %v", err)
	}
}

func TestBulkDeleteChecksAdminsAgainstWholeBatch(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	a := seedAdmin(userRepo, "a@example.com")
	b := seedAdmin(userRepo, "b@example.com")

	// Individually each admin is deletable while the other remains, but the
	// batch removes both, so the whole batch must be aborted.
	_, err := svc.DeleteUsers(ctx, "someone-else", BulkDeleteUsersRequest{
		IDs: []string{a.ID.String(), b.ID.String()},
	})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant for batch removing every admin, got %v", err)
	}
	if len(userRepo.users) != 2 {
		t.Errorf("abort-all: no user should be deleted, %d remain", len(userRepo.users))
	}

	// Leaving one admin standing is fine.
	deleted, err := svc.DeleteUsers(ctx, "someone-else", BulkDeleteUsersRequest{
		IDs: []string{a.ID.String()},
	})
	if err != nil {
		t.Fatalf("valid batch failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestAuditFailureNeverFailsUserMutations(t *testing.T) {
	userRepo := &fakeUserRepo{}
	moduleRepo := &fakeModuleRepo{}
	svc := NewUserService(userRepo, moduleRepo, failingAuditRepo{}, fakeTxManager{}, nil)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "actor-1", CreateUserRequest{
		Email: "a@example.com", Password: "secret123", Role: model.RoleUser,
	})
	if err != nil {
		t.Fatalf("create must survive an audit outage: %v", err)
	}
	if len(userRepo.users) != 1 {
		t.Fatalf("user should be persisted despite audit outage, %d stored", len(userRepo.users))
	}

	if err := svc.DeleteUser(ctx, "someone-else", created.ID); err != nil {
		t.Errorf("delete must survive an audit outage: %v", err)
	}
}

func TestSelfDeletionRejected(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	a := seedAdmin(userRepo, "a@example.com")
	seedAdmin(userRepo, "b@example.com")

	// Self-protection holds even when another admin would remain.
	if err := svc.DeleteUser(ctx, a.ID.String(), a.ID.String()); !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant deleting own account by doc id, got %v", err)
	}
	if err := svc.DeleteUser(ctx, a.UID, a.ID.String()); !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant deleting own account by uid, got %v", err)
	}

	_, err := svc.DeleteUsers(ctx, a.UID, BulkDeleteUsersRequest{IDs: []string{a.ID.String()}})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant for batch including self, got %v", err)
	}
}

func TestFindUserLookupOrder(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	u := seedAdmin(userRepo, "lookup@example.com")

	byEmail, err := svc.FindUser(ctx, "Lookup@Example.com")
	if err != nil || byEmail.ID != u.ID.String() {
		t.Errorf("lookup by email failed: %v", err)
	}
	byUID, err := svc.FindUser(ctx, u.UID)
	if err != nil || byUID.ID != u.ID.String() {
		t.Errorf("lookup by uid failed: %v", err)
	}
	byDoc, err := svc.FindUser(ctx, u.ID.String())
	if err != nil || byDoc.ID != u.ID.String() {
		t.Errorf("lookup by doc id failed: %v", err)
	}

	if _, err := svc.FindUser(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleChangeSuggestsPermissionsUnlessExplicit(t *testing.T) {
	svc, userRepo, _ := setupUserService()
	ctx := context.Background()

	u := model.AuthorizedUser{
		ID: uuid.New(), Email: "u@example.com", Role: model.RoleViewer,
		Permissions: []string{model.PermRead}, IsActive: true,
	}
	userRepo.users = append(userRepo.users, u)

	// Role change without explicit permissions: defaults applied.
	newRole := model.RoleUser
	updated, err := svc.UpdateUser(ctx, "actor-1", u.ID.String(), UpdateUserRequest{Role: &newRole})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(updated.Permissions) != 2 {
		t.Errorf("permissions = %v, want user role defaults", updated.Permissions)
	}

	// Explicit permissions in the same request win over the suggestion.
	backToViewer := model.RoleViewer
	updated, err = svc.UpdateUser(ctx, "actor-1", u.ID.String(), UpdateUserRequest{
		Role:        &backToViewer,
		Permissions: []string{model.PermRead, model.PermWrite, model.PermDelete},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(updated.Permissions) != 3 {
		t.Errorf("explicit permissions overwritten: %v", updated.Permissions)
	}
}
