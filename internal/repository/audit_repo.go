package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AdminLog) error
	List(ctx context.Context, page, limit int) ([]model.AdminLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AdminLog) error {
	// Details is a jsonb column; an empty string is not valid json.
	if entry.Details == "" {
		entry.Details = "{}"
	}
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.AdminLog, int64, error) {
	var logs []model.AdminLog
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AdminLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
