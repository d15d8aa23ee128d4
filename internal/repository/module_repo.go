package repository

import (
	"context"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModuleRepository interface {
	Create(ctx context.Context, m *model.SystemModule) error
	Update(ctx context.Context, m *model.SystemModule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SystemModule, error)
	FindByValue(ctx context.Context, value string) (*model.SystemModule, error)
	ListAll(ctx context.Context) ([]model.SystemModule, error)
	ListActive(ctx context.Context) ([]model.SystemModule, error)
	Count(ctx context.Context) (int64, error)
	MaxSortOrder(ctx context.Context) (int, error)
	UpdateSortOrder(ctx context.Context, id uuid.UUID, order int) error
	UpdateUsersCount(ctx context.Context, id uuid.UUID, count int64) error
}

type moduleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) Create(ctx context.Context, m *model.SystemModule) error {
	return GetDB(ctx, r.db).Create(m).Error
}

func (r *moduleRepository) Update(ctx context.Context, m *model.SystemModule) error {
	return GetDB(ctx, r.db).Save(m).Error
}

func (r *moduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.SystemModule{}).Error
}

func (r *moduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SystemModule, error) {
	var m model.SystemModule
	if err := GetDB(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByValue matches case-insensitively; module values are stored lowercase.
func (r *moduleRepository) FindByValue(ctx context.Context, value string) (*model.SystemModule, error) {
	var m model.SystemModule
	if err := GetDB(ctx, r.db).Where("LOWER(value) = ?", strings.ToLower(value)).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *moduleRepository) ListAll(ctx context.Context) ([]model.SystemModule, error) {
	var modules []model.SystemModule
	if err := GetDB(ctx, r.db).Order("sort_order asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) ListActive(ctx context.Context) ([]model.SystemModule, error) {
	var modules []model.SystemModule
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("sort_order asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&model.SystemModule{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *moduleRepository) MaxSortOrder(ctx context.Context) (int, error) {
	var max *int
	err := GetDB(ctx, r.db).Model(&model.SystemModule{}).Select("MAX(sort_order)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *moduleRepository) UpdateSortOrder(ctx context.Context, id uuid.UUID, order int) error {
	return GetDB(ctx, r.db).Model(&model.SystemModule{}).Where("id = ?", id).Update("sort_order", order).Error
}

func (r *moduleRepository) UpdateUsersCount(ctx context.Context, id uuid.UUID, count int64) error {
	return GetDB(ctx, r.db).Model(&model.SystemModule{}).Where("id = ?", id).Update("users_count", count).Error
}
