package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, guard *middleware.Guard) {
	// The users screen is itself a feature area: reaching it requires the
	// user-management module on top of the per-operation permissions.
	users := router.Group("/api/users")
	users.Use(guard.RequireAuth(), guard.RequireModule("user-management"))
	{
		users.GET("", guard.RequirePermission(model.PermManageUsers), h.ListUsers)
		users.GET("/:id", guard.RequirePermission(model.PermManageUsers), h.GetUser)
		users.POST("", guard.RequirePermission(model.PermManageUsers), h.CreateUser)
		users.PUT("/:id", guard.RequirePermission(model.PermManageUsers), h.UpdateUser)
		users.DELETE("/:id", guard.RequirePermission(model.PermManageUsers, model.PermDelete), h.DeleteUser)
		users.POST("/bulk-delete", guard.RequirePermission(model.PermManageUsers, model.PermDelete), h.DeleteUsers)
	}
}

// ListUsers returns a page of authorized users
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetUser resolves a user by email, uid or document id
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Email, UID or document id"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.FindUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// CreateUser provisions a new account keyed by email
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUserRequest  true  "User payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), c.GetString(middleware.CtxUserID), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// UpdateUser patches role, permissions, modules or activation
// @Summary      Update user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Email, UID or document id"
// @Param        payload  body      service.UpdateUserRequest  true  "Partial user payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id"), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser removes a single account
// @Summary      Delete user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Email, UID or document id"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id")); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted successfully"}))
}

// DeleteUsers removes a batch of accounts, all-or-nothing
// @Summary      Bulk delete users
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkDeleteUsersRequest  true  "Target ids"
// @Success      200      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users/bulk-delete [post]
func (h *UserHandler) DeleteUsers(c *gin.Context) {
	var req service.BulkDeleteUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	deleted, err := h.userService.DeleteUsers(c.Request.Context(), c.GetString(middleware.CtxUserID), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": deleted}))
}
