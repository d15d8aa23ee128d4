package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
)

var errFakeNotFound = errors.New("record not found")

// fakeTxManager runs the function directly; the fakes below are already
// all-or-nothing per call for the paths under test.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- fakeRoleRepo ---

type fakeRoleRepo struct {
	roles []model.Role
}

func (f *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.CreatedAt = time.Now()
	f.roles = append(f.roles, *role)
	return nil
}

func (f *fakeRoleRepo) Update(_ context.Context, role *model.Role) error {
	for i := range f.roles {
		if f.roles[i].ID == role.ID {
			f.roles[i] = *role
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeRoleRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range f.roles {
		if f.roles[i].ID == id {
			f.roles = append(f.roles[:i], f.roles[i+1:]...)
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeRoleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Role, error) {
	for i := range f.roles {
		if f.roles[i].ID == id {
			r := f.roles[i]
			return &r, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeRoleRepo) FindByValue(_ context.Context, value string) (*model.Role, error) {
	for i := range f.roles {
		if strings.EqualFold(f.roles[i].Value, value) {
			r := f.roles[i]
			return &r, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeRoleRepo) ListAll(_ context.Context) ([]model.Role, error) {
	out := make([]model.Role, len(f.roles))
	copy(out, f.roles)
	return out, nil
}

func (f *fakeRoleRepo) Count(_ context.Context) (int64, error) {
	return int64(len(f.roles)), nil
}

func (f *fakeRoleRepo) UpdateUserCount(_ context.Context, id uuid.UUID, count int64) error {
	for i := range f.roles {
		if f.roles[i].ID == id {
			f.roles[i].UserCount = count
			return nil
		}
	}
	return errFakeNotFound
}

// --- fakeModuleRepo ---

type fakeModuleRepo struct {
	modules []model.SystemModule
}

func (f *fakeModuleRepo) Create(_ context.Context, m *model.SystemModule) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.modules = append(f.modules, *m)
	return nil
}

func (f *fakeModuleRepo) Update(_ context.Context, m *model.SystemModule) error {
	for i := range f.modules {
		if f.modules[i].ID == m.ID {
			m.UpdatedAt = time.Now()
			f.modules[i] = *m
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeModuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range f.modules {
		if f.modules[i].ID == id {
			f.modules = append(f.modules[:i], f.modules[i+1:]...)
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeModuleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SystemModule, error) {
	for i := range f.modules {
		if f.modules[i].ID == id {
			m := f.modules[i]
			return &m, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeModuleRepo) FindByValue(_ context.Context, value string) (*model.SystemModule, error) {
	for i := range f.modules {
		if strings.EqualFold(f.modules[i].Value, value) {
			m := f.modules[i]
			return &m, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeModuleRepo) ListAll(_ context.Context) ([]model.SystemModule, error) {
	out := make([]model.SystemModule, len(f.modules))
	copy(out, f.modules)
	return out, nil
}

func (f *fakeModuleRepo) ListActive(_ context.Context) ([]model.SystemModule, error) {
	var out []model.SystemModule
	for _, m := range f.modules {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeModuleRepo) Count(_ context.Context) (int64, error) {
	return int64(len(f.modules)), nil
}

func (f *fakeModuleRepo) MaxSortOrder(_ context.Context) (int, error) {
	max := 0
	for _, m := range f.modules {
		if m.SortOrder > max {
			max = m.SortOrder
		}
	}
	return max, nil
}

func (f *fakeModuleRepo) UpdateSortOrder(_ context.Context, id uuid.UUID, order int) error {
	for i := range f.modules {
		if f.modules[i].ID == id {
			f.modules[i].SortOrder = order
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeModuleRepo) UpdateUsersCount(_ context.Context, id uuid.UUID, count int64) error {
	for i := range f.modules {
		if f.modules[i].ID == id {
			f.modules[i].UsersCount = count
			return nil
		}
	}
	return errFakeNotFound
}

// --- fakeUserRepo ---

type fakeUserRepo struct {
	users []model.AuthorizedUser
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.AuthorizedUser) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	f.users = append(f.users, *user)
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.AuthorizedUser) error {
	for i := range f.users {
		if f.users[i].ID == user.ID {
			f.users[i] = *user
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeUserRepo) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := f.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeUserRepo) FindByDocID(_ context.Context, id uuid.UUID) (*model.AuthorizedUser, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeUserRepo) FindByUID(_ context.Context, uid string) (*model.AuthorizedUser, error) {
	if uid == "" {
		return nil, errFakeNotFound
	}
	for i := range f.users {
		if f.users[i].UID == uid {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.AuthorizedUser, error) {
	for i := range f.users {
		if strings.EqualFold(f.users[i].Email, email) {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, errFakeNotFound
}

func (f *fakeUserRepo) List(_ context.Context, page, limit int) ([]model.AuthorizedUser, int64, error) {
	out := make([]model.AuthorizedUser, len(f.users))
	copy(out, f.users)
	return out, int64(len(f.users)), nil
}

func (f *fakeUserRepo) ListAll(_ context.Context) ([]model.AuthorizedUser, error) {
	out := make([]model.AuthorizedUser, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeUserRepo) ListByModule(_ context.Context, moduleValue string) ([]model.AuthorizedUser, error) {
	var out []model.AuthorizedUser
	for _, u := range f.users {
		if u.HasModule(moduleValue) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	var total int64
	for _, u := range f.users {
		if u.Role == role {
			total++
		}
	}
	return total, nil
}

func (f *fakeUserRepo) CountActiveAdmins(_ context.Context) (int64, error) {
	var total int64
	for _, u := range f.users {
		if u.Role == model.RoleAdmin && u.IsActive {
			total++
		}
	}
	return total, nil
}

func (f *fakeUserRepo) StampLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	for i := range f.users {
		if f.users[i].ID == id {
			t := at
			f.users[i].LastLogin = &t
			f.users[i].AccountStatus = model.AccountStatusActive
			return nil
		}
	}
	return errFakeNotFound
}

// --- fakeAuditRepo ---

type fakeAuditRepo struct {
	entries []model.AdminLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AdminLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AdminLog, int64, error) {
	out := make([]model.AdminLog, len(f.entries))
	copy(out, f.entries)
	return out, int64(len(f.entries)), nil
}

// failingAuditRepo simulates an unavailable audit store.
type failingAuditRepo struct{}

func (failingAuditRepo) Log(context.Context, *model.AdminLog) error {
	return errors.New("audit store unavailable")
}

func (failingAuditRepo) List(context.Context, int, int) ([]model.AdminLog, int64, error) {
	return nil, 0, errors.New("audit store unavailable")
}
