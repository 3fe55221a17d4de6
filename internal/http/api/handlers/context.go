package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/medstore/storefront-auth/internal/ratelimit"
)

// Context keys populated by the auth middleware.
const (
	ContextUserID = "authUserID"
	ContextEmail  = "authEmail"
	ContextRole   = "authRole"
)

// UserIDFromContext returns the authenticated user id, or zero.
func UserIDFromContext(c *gin.Context) uint64 {
	if v, ok := c.Get(ContextUserID); ok {
		if id, okCast := v.(uint64); okCast {
			return id
		}
	}
	return 0
}

// clientInfo derives the limiter identifier and request telemetry.
func clientInfo(c *gin.Context) (identifier, ipAddress, userAgent string) {
	identifier = ratelimit.ClientIdentifier(c.Request)
	ipAddress = c.ClientIP()
	userAgent = c.Request.UserAgent()
	if userAgent == "" {
		userAgent = "Unknown"
	}
	return identifier, ipAddress, userAgent
}
