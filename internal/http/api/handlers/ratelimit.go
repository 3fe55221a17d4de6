package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medstore/storefront-auth/internal/ratelimit"
)

// RateLimitHandler exposes administrative limiter operations.
type RateLimitHandler struct {
	store ratelimit.Store
}

// NewRateLimitHandler constructs a RateLimitHandler.
func NewRateLimitHandler(store ratelimit.Store) *RateLimitHandler {
	return &RateLimitHandler{store: store}
}

// unblacklistRequest defines the request body for unblacklisting.
type unblacklistRequest struct {
	Identifier string `json:"identifier"`
}

// Unblacklist removes a client identifier from the permanent blacklist.
// This is the only path out of the blacklisted state.
func (h *RateLimitHandler) Unblacklist(c *gin.Context) {
	var body unblacklistRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cuerpo de la solicitud inválido"})
		return
	}
	identifier := strings.TrimSpace(body.Identifier)
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identificador requerido"})
		return
	}

	h.store.Unblacklist(identifier)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Identificador desbloqueado"})
}
