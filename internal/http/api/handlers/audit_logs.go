package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/models"
)

// defaultAuditPageSize bounds unfiltered audit listings.
const defaultAuditPageSize = 100

// AuditLogHandler exposes the audit trail to administrators.
type AuditLogHandler struct {
	db *gorm.DB
}

// NewAuditLogHandler constructs an AuditLogHandler.
func NewAuditLogHandler(db *gorm.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// List returns audit entries, newest first, with optional filters.
func (h *AuditLogHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AuditLog{})

	if userIDQ := strings.TrimSpace(c.Query("user_id")); userIDQ != "" {
		if userID, errParse := strconv.ParseUint(userIDQ, 10, 64); errParse == nil {
			q = q.Where("user_id = ?", userID)
		}
	}
	if eventQ := strings.TrimSpace(c.Query("event_type")); eventQ != "" {
		q = q.Where("event_type = ?", eventQ)
	}

	limit := defaultAuditPageSize
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		if parsed, errParse := strconv.Atoi(limitQ); errParse == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	var rows []models.AuditLog
	if errFind := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno del servidor"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"user_id":    row.UserID,
			"event_type": row.EventType,
			"ip_address": row.IPAddress,
			"user_agent": row.UserAgent,
			"metadata":   row.Metadata,
			"success":    row.Success,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": out})
}
