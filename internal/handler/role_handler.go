package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup, guard *middleware.Guard) {
	roles := router.Group("/api/roles")
	roles.Use(guard.RequireAuth())
	{
		// Option list feeds selects on the user form; any authenticated user
		// with user management may read it.
		roles.GET("/options", guard.RequirePermission(model.PermManageUsers), h.RoleOptions)

		managed := roles.Group("")
		managed.Use(guard.RequirePermission(model.PermManageRoles))
		{
			managed.GET("", h.ListRoles)
			managed.GET("/:id", h.GetRole)
			managed.POST("", h.CreateRole)
			managed.PUT("/:id", h.UpdateRole)
			managed.DELETE("/:id", h.DeleteRole)
		}
	}

	perms := router.Group("/api/permissions")
	perms.Use(guard.RequireAuth(), guard.RequirePermission(model.PermManageUsers))
	{
		perms.GET("", h.ListPermissions)
		perms.GET("/defaults/:role", h.DefaultPermissions)
	}
}

// ListRoles returns all roles with recomputed user counts
// @Summary      List roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// GetRole returns a single role by ID
// @Summary      Get role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=service.RoleResponse}
// @Router       /api/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// CreateRole creates a new custom role
// @Summary      Create role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRoleRequest  true  "Role payload"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), c.GetString(middleware.CtxUserID), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// UpdateRole updates a role; system roles cannot be renamed or deactivated
// @Summary      Update role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Partial role payload"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id"), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// DeleteRole deletes a custom role that no user holds
// @Summary      Delete role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roleService.DeleteRole(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id")); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Role deleted successfully"}))
}

// RoleOptions returns active roles as select options
// @Summary      Role options
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleOption}
// @Router       /api/roles/options [get]
func (h *RoleHandler) RoleOptions(c *gin.Context) {
	options, err := h.roleService.RoleOptions(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, options))
}

// ListPermissions returns the fixed permission catalog
// @Summary      List permissions
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Permission}
// @Router       /api/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.roleService.ListPermissions(c.Request.Context())))
}

// DefaultPermissions returns the suggested permission set for a role value
// @Summary      Default permissions for role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role  path      string  true  "Role value"
// @Success      200   {object}  response.Response{data=[]string}
// @Router       /api/permissions/defaults/{role} [get]
func (h *RoleHandler) DefaultPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.roleService.DefaultPermissions(c.Param("role"))))
}
