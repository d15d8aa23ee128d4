package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines data access for AuthorizedUser records
type UserRepository interface {
	Create(ctx context.Context, user *model.AuthorizedUser) error
	Update(ctx context.Context, user *model.AuthorizedUser) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
	FindByDocID(ctx context.Context, id uuid.UUID) (*model.AuthorizedUser, error)
	FindByUID(ctx context.Context, uid string) (*model.AuthorizedUser, error)
	FindByEmail(ctx context.Context, email string) (*model.AuthorizedUser, error)
	List(ctx context.Context, page, limit int) ([]model.AuthorizedUser, int64, error)
	ListAll(ctx context.Context) ([]model.AuthorizedUser, error)
	ListByModule(ctx context.Context, moduleValue string) ([]model.AuthorizedUser, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	CountActiveAdmins(ctx context.Context) (int64, error)
	StampLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.AuthorizedUser) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.AuthorizedUser) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.AuthorizedUser{}).Error
}

func (r *userRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Where("id IN ?", ids).Delete(&model.AuthorizedUser{}).Error
}

func (r *userRepository) FindByDocID(ctx context.Context, id uuid.UUID) (*model.AuthorizedUser, error) {
	var user model.AuthorizedUser
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUID(ctx context.Context, uid string) (*model.AuthorizedUser, error) {
	var user model.AuthorizedUser
	if err := GetDB(ctx, r.db).Where("uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail matches case-insensitively; emails are stored lowercase.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.AuthorizedUser, error) {
	var user model.AuthorizedUser
	if err := GetDB(ctx, r.db).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page, limit int) ([]model.AuthorizedUser, int64, error) {
	var users []model.AuthorizedUser
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AuthorizedUser{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at asc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) ListAll(ctx context.Context) ([]model.AuthorizedUser, error) {
	var users []model.AuthorizedUser
	if err := GetDB(ctx, r.db).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListByModule returns every user whose module set contains moduleValue,
// using the jsonb containment operator.
func (r *userRepository) ListByModule(ctx context.Context, moduleValue string) ([]model.AuthorizedUser, error) {
	needle, err := json.Marshal([]string{moduleValue})
	if err != nil {
		return nil, err
	}

	var users []model.AuthorizedUser
	if err := GetDB(ctx, r.db).Where("modules @> ?", string(needle)).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.AuthorizedUser{}).Where("role = ?", role).Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *userRepository) CountActiveAdmins(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.AuthorizedUser{}).
		Where("role = ? AND is_active = ?", model.RoleAdmin, true).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *userRepository) StampLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.AuthorizedUser{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login":     at,
			"account_status": model.AccountStatusActive,
		}).Error
}
