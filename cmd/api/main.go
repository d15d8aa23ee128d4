package main

import (
	"context"

	_ "backend/api/swagger" // swagger docs
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"
	ws "backend/internal/websocket"
	"backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Console Authorization API
// @version         1.0
// @description     Role, module and user access management for the internal business console.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	logger.Info().Msg("connected to PostgreSQL")

	// Event hub for registry-change broadcasts
	hub := ws.NewHub()
	go hub.Run()

	// Repository -> Service -> Handler
	roleRepo := repository.NewRoleRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	roleService := service.NewRoleService(roleRepo, userRepo, auditRepo, txManager, hub)
	moduleService := service.NewModuleService(moduleRepo, userRepo, auditRepo, txManager, hub)
	userService := service.NewUserService(userRepo, moduleRepo, auditRepo, txManager, hub)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret))
	auditService := service.NewAuditService(auditRepo)

	// First-boot seeds are idempotent no-ops on every later start.
	ctx := context.Background()
	if err := roleService.EnsureSystemRoles(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed system roles")
	}
	if err := moduleService.SeedDefaultModules(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed default modules")
	}

	guard := middleware.NewGuard(userRepo, []byte(cfg.JWTSecret))

	authHandler := handler.NewAuthHandler(authService)
	roleHandler := handler.NewRoleHandler(roleService)
	moduleHandler := handler.NewModuleHandler(moduleService)
	userHandler := handler.NewUserHandler(userService)
	auditHandler := handler.NewAuditHandler(auditService)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c, []byte(cfg.JWTSecret))
	})

	authHandler.RegisterRoutes(router.Group(""), guard)
	roleHandler.RegisterRoutes(router.Group(""), guard)
	moduleHandler.RegisterRoutes(router.Group(""), guard)
	userHandler.RegisterRoutes(router.Group(""), guard)
	auditHandler.RegisterRoutes(router.Group(""), guard)

	logger.Info().Str("port", cfg.Port).Msg("server listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
