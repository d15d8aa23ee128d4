package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ModuleHandler struct {
	moduleService service.ModuleService
}

func NewModuleHandler(moduleService service.ModuleService) *ModuleHandler {
	return &ModuleHandler{moduleService: moduleService}
}

func (h *ModuleHandler) RegisterRoutes(router *gin.RouterGroup, guard *middleware.Guard) {
	modules := router.Group("/api/modules")
	modules.Use(guard.RequireAuth())
	{
		// The active list drives the navigation menu for every signed-in user.
		modules.GET("/active", h.ActiveModules)

		managed := modules.Group("")
		managed.Use(guard.RequirePermission(model.PermManageModules), guard.RequireModule("settings"))
		{
			managed.GET("", h.ListModules)
			managed.GET("/:id", h.GetModule)
			managed.POST("", h.CreateModule)
			managed.PUT("/reorder", h.ReorderModules)
			managed.POST("/recount", h.RefreshUserCounts)
			managed.PUT("/:id", h.UpdateModule)
			managed.DELETE("/:id", h.DeleteModule)
		}
	}
}

// ListModules returns every module in display order
// @Summary      List modules
// @Tags         modules
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ModuleResponse}
// @Router       /api/modules [get]
func (h *ModuleHandler) ListModules(c *gin.Context) {
	modules, err := h.moduleService.ListModules(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modules))
}

// ActiveModules returns active modules for navigation rendering
// @Summary      Active modules
// @Tags         modules
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ModuleResponse}
// @Router       /api/modules/active [get]
func (h *ModuleHandler) ActiveModules(c *gin.Context) {
	modules, err := h.moduleService.ActiveModules(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modules))
}

// GetModule returns a single module
// @Summary      Get module
// @Tags         modules
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Module ID"
// @Success      200  {object}  response.Response{data=service.ModuleResponse}
// @Router       /api/modules/{id} [get]
func (h *ModuleHandler) GetModule(c *gin.Context) {
	m, err := h.moduleService.GetModule(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, m))
}

// CreateModule creates a feature-area module
// @Summary      Create module
// @Tags         modules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateModuleRequest  true  "Module payload"
// @Success      201      {object}  response.Response{data=service.ModuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/modules [post]
func (h *ModuleHandler) CreateModule(c *gin.Context) {
	var req service.CreateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	m, err := h.moduleService.CreateModule(c.Request.Context(), c.GetString(middleware.CtxUserID), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, m))
}

// UpdateModule merges the provided fields into a module
// @Summary      Update module
// @Tags         modules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Module ID"
// @Param        payload  body      service.UpdateModuleRequest  true  "Partial module payload"
// @Success      200      {object}  response.Response{data=service.ModuleResponse}
// @Router       /api/modules/{id} [put]
func (h *ModuleHandler) UpdateModule(c *gin.Context) {
	var req service.UpdateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	m, err := h.moduleService.UpdateModule(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id"), req)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, m))
}

// DeleteModule deactivates a module, or with ?hard=true removes it and strips
// it from every user's assignment set
// @Summary      Delete module
// @Tags         modules
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true   "Module ID"
// @Param        hard  query     bool    false  "Permanently delete and cascade"
// @Success      200   {object}  response.Response{data=service.DeleteModuleResult}
// @Router       /api/modules/{id} [delete]
func (h *ModuleHandler) DeleteModule(c *gin.Context) {
	hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))

	result, err := h.moduleService.DeleteModule(c.Request.Context(), c.GetString(middleware.CtxUserID), c.Param("id"), hard)
	if err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ReorderModules assigns display order from the given id sequence
// @Summary      Reorder modules
// @Tags         modules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReorderModulesRequest  true  "Ordered module ids"
// @Success      200      {object}  response.Response
// @Router       /api/modules/reorder [put]
func (h *ModuleHandler) ReorderModules(c *gin.Context) {
	var req service.ReorderModulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.moduleService.ReorderModules(c.Request.Context(), c.GetString(middleware.CtxUserID), req); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Modules reordered"}))
}

// RefreshUserCounts recomputes every module's cached user count
// @Summary      Recount module users
// @Tags         modules
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/modules/recount [post]
func (h *ModuleHandler) RefreshUserCounts(c *gin.Context) {
	if err := h.moduleService.RefreshUserCounts(c.Request.Context(), c.GetString(middleware.CtxUserID)); err != nil {
		c.JSON(statusFor(err), response.Error(statusFor(err), err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Module user counts refreshed"}))
}
