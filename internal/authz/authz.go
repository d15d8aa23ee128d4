// Package authz holds the authorization evaluator: pure decision functions
// over an already-loaded user record. All capability checks in the system —
// guard middleware and UI option endpoints alike — go through these three
// primitives so they cannot drift apart.
package authz

import "backend/internal/model"

// HasPermission reports whether the user holds a permission code. Inactive
// accounts are denied everything; the admin role overrides every permission
// check.
func HasPermission(user *model.AuthorizedUser, permission string) bool {
	if user == nil || !user.IsActive {
		return false
	}
	if user.Role == model.RoleAdmin {
		return true
	}
	return user.HasPermissionCode(permission)
}

// HasModuleAccess reports whether the user may enter a feature area. Admins
// implicitly have every module without an explicit assignment.
func HasModuleAccess(user *model.AuthorizedUser, moduleValue string) bool {
	if user == nil || !user.IsActive {
		return false
	}
	if user.Role == model.RoleAdmin {
		return true
	}
	return user.HasModule(moduleValue)
}

// HasRole reports whether the user's role is in the allowed set.
func HasRole(user *model.AuthorizedUser, allowedRoles ...string) bool {
	if user == nil {
		return false
	}
	for _, r := range allowedRoles {
		if user.Role == r {
			return true
		}
	}
	return false
}
