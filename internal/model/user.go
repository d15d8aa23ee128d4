package model

import (
	"time"

	"github.com/google/uuid"
)

// Account status values
const (
	AccountStatusPending = "pending" // Provisioned, never logged in
	AccountStatusActive  = "active"
	AccountStatusLocked  = "locked"
)

// AuthorizedUser represents an account allowed into the console. Records are
// provisioned by an admin keyed by email; UID is bound on first login.
type AuthorizedUser struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UID           string     `gorm:"type:varchar(128);index" json:"uid"` // Identity key, empty until first login
	Email         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName   string     `gorm:"type:varchar(255)" json:"display_name"`
	Password      string     `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash, never serialized
	Role          string     `gorm:"type:varchar(50);not null" json:"role"`
	Permissions   []string   `gorm:"type:jsonb;serializer:json" json:"permissions"` // Explicit set, independent of role
	Modules       []string   `gorm:"type:jsonb;serializer:json" json:"modules"`     // SystemModule values
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	AccountStatus string     `gorm:"type:varchar(20);default:'pending'" json:"account_status"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     string     `gorm:"type:varchar(100)" json:"created_by"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// HasModule reports whether value is in the user's explicit module set.
func (u *AuthorizedUser) HasModule(value string) bool {
	for _, m := range u.Modules {
		if m == value {
			return true
		}
	}
	return false
}

// HasPermissionCode reports whether code is in the user's explicit permission set.
func (u *AuthorizedUser) HasPermissionCode(code string) bool {
	for _, p := range u.Permissions {
		if p == code {
			return true
		}
	}
	return false
}
