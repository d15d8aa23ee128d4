package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
)

func setupModuleService() (ModuleService, *fakeModuleRepo, *fakeUserRepo, *fakeAuditRepo) {
	moduleRepo := &fakeModuleRepo{}
	userRepo := &fakeUserRepo{}
	auditRepo := &fakeAuditRepo{}
	svc := NewModuleService(moduleRepo, userRepo, auditRepo, fakeTxManager{}, nil)
	return svc, moduleRepo, userRepo, auditRepo
}

func TestCreateModuleRoundTrip(t *testing.T) {
	svc, _, _, _ := setupModuleService()
	ctx := context.Background()

	created, err := svc.CreateModule(ctx, "admin-1", CreateModuleRequest{
		Value:       "Clients",
		Label:       "Clients",
		Description: "Client directory",
		Icon:        "people",
		Route:       "/clients",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := svc.GetModule(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got.Value != "clients" {
		t.Errorf("value = %q, want normalized %q", got.Value, "clients")
	}
	if got.Label != "Clients" || got.Description != "Client directory" || got.Icon != "people" || got.Route != "/clients" {
		t.Errorf("field mismatch after round trip: %+v", got)
	}
	if got.UsersCount != 0 {
		t.Errorf("new module users count = %d, want 0", got.UsersCount)
	}
	if !got.IsActive {
		t.Error("new module should be active")
	}
	if got.CreatedBy != "admin-1" {
		t.Errorf("created by = %q, want actor", got.CreatedBy)
	}
}

func TestCreateModuleAssignsNextOrder(t *testing.T) {
	svc, moduleRepo, _, _ := setupModuleService()
	ctx := context.Background()

	moduleRepo.modules = []model.SystemModule{
		{ID: uuid.New(), Value: "a", SortOrder: 3, IsActive: true},
		{ID: uuid.New(), Value: "b", SortOrder: 7, IsActive: true},
	}

	created, err := svc.CreateModule(ctx, "admin-1", CreateModuleRequest{
		Value: "c", Label: "C", Description: "d", Icon: "i",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.SortOrder != 8 {
		t.Errorf("sort order = %d, want max+1 = 8", created.SortOrder)
	}
}

func TestCreateModuleRejectsDuplicateValueAnyCase(t *testing.T) {
	svc, _, _, _ := setupModuleService()
	ctx := context.Background()

	req := CreateModuleRequest{Value: "clients", Label: "Clients", Description: "d", Icon: "i"}
	if _, err := svc.CreateModule(ctx, "admin-1", req); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	req.Value = "CLIENTS"
	if _, err := svc.CreateModule(ctx, "admin-1", req); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate, got %v", err)
	}
	// A retry does not change the outcome.
	if _, err := svc.CreateModule(ctx, "admin-1", req); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation on retry, got %v", err)
	}
}

func TestCreateModuleValidatesFields(t *testing.T) {
	svc, _, _, _ := setupModuleService()
	ctx := context.Background()

	cases := []CreateModuleRequest{
		{Value: "bad value!", Label: "L", Description: "D", Icon: "I"},
		{Value: "ok", Label: " ", Description: "D", Icon: "I"},
		{Value: "ok", Label: "L", Description: "", Icon: "I"},
		{Value: "ok", Label: "L", Description: "D", Icon: ""},
	}
	for i, req := range cases {
		if _, err := svc.CreateModule(ctx, "admin-1", req); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestHardDeleteCascadesAssignments(t *testing.T) {
	svc, moduleRepo, userRepo, _ := setupModuleService()
	ctx := context.Background()

	created, err := svc.CreateModule(ctx, "admin-1", CreateModuleRequest{
		Value: "clients", Label: "Clients", Description: "d", Icon: "i",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, email := range []string{"x@example.com", "y@example.com", "z@example.com"} {
		userRepo.users = append(userRepo.users, model.AuthorizedUser{
			ID: uuid.New(), Email: email, Role: model.RoleUser,
			Modules: []string{"clients", "workers"}, IsActive: true,
		})
	}
	// One user without the module must stay untouched.
	userRepo.users = append(userRepo.users, model.AuthorizedUser{
		ID: uuid.New(), Email: "w@example.com", Role: model.RoleUser,
		Modules: []string{"workers"}, IsActive: true,
	})

	result, err := svc.DeleteModule(ctx, "admin-1", created.ID, true)
	if err != nil {
		t.Fatalf("hard delete failed: %v", err)
	}
	if result.UsersAffected != 3 {
		t.Errorf("users affected = %d, want 3", result.UsersAffected)
	}
	if len(moduleRepo.modules) != 0 {
		t.Errorf("module should be deleted, %d remain", len(moduleRepo.modules))
	}
	for _, u := range userRepo.users {
		if u.HasModule("clients") {
			t.Errorf("user %s still references deleted module", u.Email)
		}
		if !u.HasModule("workers") {
			t.Errorf("user %s lost an unrelated module", u.Email)
		}
	}
}

func TestAuditFailureNeverFailsModuleMutations(t *testing.T) {
	moduleRepo := &fakeModuleRepo{}
	userRepo := &fakeUserRepo{}
	svc := NewModuleService(moduleRepo, userRepo, failingAuditRepo{}, fakeTxManager{}, nil)
	ctx := context.Background()

	created, err := svc.CreateModule(ctx, "admin-1", CreateModuleRequest{
		Value: "clients", Label: "Clients", Description: "d", Icon: "i",
	})
	if err != nil {
		t.Fatalf("create must survive an audit outage: %v", err)
	}

	userRepo.users = append(userRepo.users, model.AuthorizedUser{
		ID: uuid.New(), Email: "x@example.com", Role: model.RoleUser,
		Modules: []string{"clients"}, IsActive: true,
	})

	// The cascade commits and the audit failure stays a side note.
	result, err := svc.DeleteModule(ctx, "admin-1", created.ID, true)
	if err != nil {
		t.Fatalf("hard delete must survive an audit outage: %v", err)
	}
	if result.UsersAffected != 1 {
		t.Errorf("users affected = %d, want 1", result.UsersAffected)
	}
	if len(moduleRepo.modules) != 0 {
		t.Errorf("module should be deleted despite audit outage, %d remain", len(moduleRepo.modules))
	}
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	svc, moduleRepo, _, _ := setupModuleService()
	ctx := context.Background()

	created, err := svc.CreateModule(ctx, "admin-1", CreateModuleRequest{
		Value: "treasury", Label: "Treasury", Description: "d", Icon: "i",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.DeleteModule(ctx, "admin-1", created.ID, false); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	// Deactivating an already-inactive module succeeds.
	if _, err := svc.DeleteModule(ctx, "admin-1", created.ID, false); err != nil {
		t.Errorf("repeated soft delete should succeed, got %v", err)
	}

	m, _ := moduleRepo.FindByValue(ctx, "treasury")
	if m.IsActive {
		t.Error("module should be inactive after soft delete")
	}
}

func TestReorderPreservesSet(t *testing.T) {
	svc, moduleRepo, _, _ := setupModuleService()
	ctx := context.Background()

	idA, idB, idC := uuid.New(), uuid.New(), uuid.New()
	moduleRepo.modules = []model.SystemModule{
		{ID: idA, Value: "a", SortOrder: 0, IsActive: true},
		{ID: idB, Value: "b", SortOrder: 1, IsActive: true},
		{ID: idC, Value: "c", SortOrder: 5, IsActive: true},
	}

	err := svc.ReorderModules(ctx, "admin-1", ReorderModulesRequest{
		OrderedIDs: []string{idB.String(), idA.String()},
	})
	if err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	if len(moduleRepo.modules) != 3 {
		t.Fatalf("module count changed: %d", len(moduleRepo.modules))
	}

	b, _ := moduleRepo.FindByID(ctx, idB)
	a, _ := moduleRepo.FindByID(ctx, idA)
	c, _ := moduleRepo.FindByID(ctx, idC)
	if b.SortOrder != 0 || a.SortOrder != 1 {
		t.Errorf("reordered: a=%d b=%d, want a=1 b=0", a.SortOrder, b.SortOrder)
	}
	// Modules absent from the sequence keep their prior order.
	if c.SortOrder != 5 {
		t.Errorf("untouched module order = %d, want 5", c.SortOrder)
	}
}

func TestRefreshUserCountsTallies(t *testing.T) {
	svc, moduleRepo, userRepo, _ := setupModuleService()
	ctx := context.Background()

	idA, idB := uuid.New(), uuid.New()
	moduleRepo.modules = []model.SystemModule{
		{ID: idA, Value: "clients", IsActive: true, UsersCount: 99},
		{ID: idB, Value: "workers", IsActive: true},
	}
	userRepo.users = []model.AuthorizedUser{
		{ID: uuid.New(), Email: "a@example.com", Modules: []string{"clients"}},
		{ID: uuid.New(), Email: "b@example.com", Modules: []string{"clients", "workers"}},
		{ID: uuid.New(), Email: "c@example.com", Modules: nil},
	}

	if err := svc.RefreshUserCounts(ctx, "admin-1"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	clients, _ := moduleRepo.FindByID(ctx, idA)
	workers, _ := moduleRepo.FindByID(ctx, idB)
	if clients.UsersCount != 2 {
		t.Errorf("clients count = %d, want 2", clients.UsersCount)
	}
	if workers.UsersCount != 1 {
		t.Errorf("workers count = %d, want 1", workers.UsersCount)
	}
}

func TestSeedDefaultModulesIsIdempotent(t *testing.T) {
	svc, moduleRepo, _, _ := setupModuleService()
	ctx := context.Background()

	if err := svc.SeedDefaultModules(ctx); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if err := svc.SeedDefaultModules(ctx); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if len(moduleRepo.modules) != len(model.DefaultModules) {
		t.Errorf("module count = %d, want %d", len(moduleRepo.modules), len(model.DefaultModules))
	}
}
