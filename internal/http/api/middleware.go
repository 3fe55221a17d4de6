package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medstore/storefront-auth/internal/audit"
	"github.com/medstore/storefront-auth/internal/http/api/handlers"
	"github.com/medstore/storefront-auth/internal/models"
	"github.com/medstore/storefront-auth/internal/security"
)

// AuthMiddleware validates bearer access tokens and loads the token claims
// into the request context.
func AuthMiddleware(tokens *security.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "No autorizado"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "No autorizado"})
			return
		}

		claims, errParse := tokens.ParseAccessToken(strings.TrimSpace(token))
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Token inválido o expirado"})
			return
		}

		c.Set(handlers.ContextUserID, claims.UserID)
		c.Set(handlers.ContextEmail, claims.Email)
		c.Set(handlers.ContextRole, claims.Role)
		c.Next()
	}
}

// OptionalAuth loads claims from a bearer token when one is present and
// valid, without rejecting the request otherwise. Used on logout, where an
// expired token should still clear the cookie.
func OptionalAuth(tokens *security.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.Next()
			return
		}
		if claims, errParse := tokens.ParseAccessToken(token); errParse == nil {
			c.Set(handlers.ContextUserID, claims.UserID)
			c.Set(handlers.ContextEmail, claims.Email)
			c.Set(handlers.ContextRole, claims.Role)
		}
		c.Next()
	}
}

// RequireRole centralizes the role gate so the authorization policy lives in
// one place. A wrong role is audited as an unauthorized access attempt.
func RequireRole(role string, recorder *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		actual, _ := c.Get(handlers.ContextRole)
		if actual == role {
			c.Next()
			return
		}

		entry := audit.Entry{
			EventType: models.EventUnauthorizedAccess,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Metadata:  map[string]any{"path": c.Request.URL.Path, "requiredRole": role},
			Success:   false,
		}
		if userID := handlers.UserIDFromContext(c); userID != 0 {
			entry.UserID = &userID
		}
		recorder.Record(c.Request.Context(), entry)

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Acceso denegado"})
	}
}
