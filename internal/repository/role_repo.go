package repository

import (
	"context"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByValue(ctx context.Context, value string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	Count(ctx context.Context) (int64, error)
	UpdateUserCount(ctx context.Context, id uuid.UUID, count int64) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Save(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByValue matches case-insensitively; role values are stored lowercase.
func (r *roleRepository) FindByValue(ctx context.Context, value string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("LOWER(value) = ?", strings.ToLower(value)).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&model.Role{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *roleRepository) UpdateUserCount(ctx context.Context, id uuid.UUID, count int64) error {
	return GetDB(ctx, r.db).Model(&model.Role{}).Where("id = ?", id).Update("user_count", count).Error
}
