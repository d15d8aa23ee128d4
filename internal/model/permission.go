package model

// Permission codes. Permissions are not persisted as standalone records — the
// catalog below is the fixed set consumed by role and user assignments.
const (
	PermRead          = "read"
	PermWrite         = "write"
	PermDelete        = "delete"
	PermManageUsers   = "manage_users"
	PermManageRoles   = "manage_roles"
	PermManageModules = "manage_modules"
	PermViewAudit     = "view_audit"
)

// Permission describes a single capability for UI option lists
type Permission struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Group string `json:"group"` // "general", "administration"
}

// PermissionCatalog is the complete enumerable set of capabilities.
var PermissionCatalog = []Permission{
	{Code: PermRead, Label: "Read records", Group: "general"},
	{Code: PermWrite, Label: "Create and edit records", Group: "general"},
	{Code: PermDelete, Label: "Delete records", Group: "general"},
	{Code: PermManageUsers, Label: "Manage users", Group: "administration"},
	{Code: PermManageRoles, Label: "Manage roles", Group: "administration"},
	{Code: PermManageModules, Label: "Manage system modules", Group: "administration"},
	{Code: PermViewAudit, Label: "View activity logs", Group: "administration"},
}

// defaultRolePermissions maps a role value to the permission set suggested
// when a user is provisioned without explicit permissions. Single source of
// truth shared by the registries and the UI option endpoints.
var defaultRolePermissions = map[string][]string{
	RoleAdmin: {
		PermRead, PermWrite, PermDelete,
		PermManageUsers, PermManageRoles, PermManageModules, PermViewAudit,
	},
	RoleUser:   {PermRead, PermWrite},
	RoleViewer: {PermRead},
}

// DefaultPermissionsForRole returns a copy of the suggested permission set for
// a role value. Unknown roles get the viewer defaults.
func DefaultPermissionsForRole(role string) []string {
	perms, ok := defaultRolePermissions[role]
	if !ok {
		perms = defaultRolePermissions[RoleViewer]
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// ValidPermission reports whether code is part of the catalog.
func ValidPermission(code string) bool {
	for _, p := range PermissionCatalog {
		if p.Code == code {
			return true
		}
	}
	return false
}
