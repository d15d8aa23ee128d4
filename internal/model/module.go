package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ModuleValuePattern constrains module slugs. Matched case-insensitively —
// values are normalized to lowercase before storage.
var ModuleValuePattern = regexp.MustCompile(`^[a-z0-9-_]+$`)

// SystemModule represents an assignable feature area of the console
type SystemModule struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Value       string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"value"` // lowercase slug, e.g. "clients"
	Label       string    `gorm:"type:varchar(100);not null" json:"label"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Icon        string    `gorm:"type:varchar(50);not null" json:"icon"`
	Route       string    `gorm:"type:varchar(100)" json:"route,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	SortOrder   int       `gorm:"default:0;index" json:"sort_order"` // Total display ordering
	UsersCount  int64     `gorm:"default:0" json:"users_count"`      // Derived cache; authorized_users.modules is source of truth
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `gorm:"type:varchar(100)" json:"created_by"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `gorm:"type:varchar(100)" json:"updated_by"`
}

// DefaultModules is the first-boot catalog covering the console's feature
// areas. Seeded only when the collection is empty.
var DefaultModules = []SystemModule{
	{Value: "clients", Label: "Clients", Description: "Client directory and contact management", Icon: "people", Route: "/clients"},
	{Value: "workers", Label: "Workers", Description: "Worker records and assignments", Icon: "engineering", Route: "/workers"},
	{Value: "companies", Label: "Companies", Description: "Company registry", Icon: "business", Route: "/companies"},
	{Value: "projects", Label: "Projects", Description: "Projects and proposals", Icon: "folder", Route: "/projects"},
	{Value: "treasury", Label: "Treasury", Description: "Treasury movements overview", Icon: "account_balance", Route: "/treasury"},
	{Value: "planning", Label: "Work Planning", Description: "Work planning calendar", Icon: "calendar_month", Route: "/planning"},
	{Value: "user-management", Label: "User Management", Description: "Accounts, roles and access", Icon: "manage_accounts", Route: "/users"},
	{Value: "settings", Label: "Settings", Description: "System configuration and modules", Icon: "settings", Route: "/settings"},
}
