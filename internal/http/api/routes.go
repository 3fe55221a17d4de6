package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/audit"
	"github.com/medstore/storefront-auth/internal/auth"
	"github.com/medstore/storefront-auth/internal/http/api/handlers"
	"github.com/medstore/storefront-auth/internal/models"
	"github.com/medstore/storefront-auth/internal/ratelimit"
	"github.com/medstore/storefront-auth/internal/security"
)

// RegisterRoutes mounts all HTTP endpoints on the engine.
func RegisterRoutes(engine *gin.Engine, db *gorm.DB, svc *auth.Service, tokens *security.TokenService, recorder *audit.Recorder, limiter ratelimit.Store) {
	healthHandler := handlers.NewHealthHandler(db)
	engine.GET("/healthz", healthHandler.Healthz)

	authHandler := handlers.NewAuthHandler(svc)
	authGroup := engine.Group("/v0/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/verify-code", authHandler.VerifyCode)
	authGroup.POST("/send-verification", authHandler.SendVerification)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", OptionalAuth(tokens), authHandler.Logout)
	authGroup.GET("/me", AuthMiddleware(tokens), authHandler.Me)

	userHandler := handlers.NewUserHandler(db, recorder)
	auditHandler := handlers.NewAuditLogHandler(db)
	limiterHandler := handlers.NewRateLimitHandler(limiter)

	adminGroup := engine.Group("/v0/admin", AuthMiddleware(tokens), RequireRole(models.RoleAdministrator, recorder))
	adminGroup.GET("/users", userHandler.List)
	adminGroup.GET("/users/:id", userHandler.Get)
	adminGroup.PUT("/users/:id", userHandler.Update)
	adminGroup.GET("/audit-logs", auditHandler.List)
	adminGroup.POST("/ratelimit/unblacklist", limiterHandler.Unblacklist)
}
