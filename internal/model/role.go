package model

import (
	"time"

	"github.com/google/uuid"
)

// System role values. These three roles are seeded once at first boot and can
// never be deleted or renamed.
const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleViewer = "viewer"
)

// Role represents a named bundle of permissions
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Value       string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"value"` // lowercase slug, e.g. "admin"
	Label       string    `gorm:"type:varchar(100);not null" json:"label"`
	Description string    `gorm:"type:text" json:"description"`
	Permissions []string  `gorm:"type:jsonb;serializer:json" json:"permissions"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"` // Prevent deletion/renaming of built-in roles
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	UserCount   int64     `gorm:"default:0" json:"user_count"` // Derived cache, recomputed from authorized_users
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsSystemRoleValue reports whether value names one of the seeded roles.
func IsSystemRoleValue(value string) bool {
	return value == RoleAdmin || value == RoleUser || value == RoleViewer
}
