package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/audit"
	dbutil "github.com/medstore/storefront-auth/internal/db"
	"github.com/medstore/storefront-auth/internal/models"
)

// UserHandler manages the admin user endpoints.
type UserHandler struct {
	db       *gorm.DB
	recorder *audit.Recorder
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, recorder *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, recorder: recorder}
}

// List returns users with optional filters, passwords excluded.
func (h *UserHandler) List(c *gin.Context) {
	var (
		emailQ  = strings.TrimSpace(c.Query("email"))
		searchQ = strings.TrimSpace(c.Query("search"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if emailQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+emailQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}
	if searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email"),
			pattern,
			pattern,
		)
	}

	var rows []models.User
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno del servidor"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                    row.ID,
			"name":                  row.Name,
			"email":                 row.Email,
			"role":                  row.Role,
			"is_active":             row.IsActive,
			"email_verified":        row.EmailVerified,
			"failed_login_attempts": row.FailedLoginAttempts,
			"locked_until":          row.LockedUntil,
			"last_login":            row.LastLogin,
			"created_at":            row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": out})
}

// updateUserRequest defines the request body for admin user updates.
type updateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// Update modifies a user's role or active flag. An administrator cannot
// deactivate their own account.
func (h *UserHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ID inválido"})
		return
	}

	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cuerpo de la solicitud inválido"})
		return
	}

	if body.IsActive != nil && !*body.IsActive && id == UserIDFromContext(c) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No puedes desactivar tu propia cuenta"})
		return
	}

	updates := map[string]any{}
	if body.Role != nil {
		role := strings.TrimSpace(*body.Role)
		if role != models.RoleStandard && role != models.RoleAdministrator {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Rol inválido"})
			return
		}
		updates["role"] = role
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Nada que actualizar"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno del servidor"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Usuario no encontrado"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Usuario actualizado correctamente"})
}

// Get returns one user by id, password excluded.
func (h *UserHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ID inválido"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Usuario no encontrado"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error interno del servidor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": gin.H{
		"id":                    user.ID,
		"name":                  user.Name,
		"email":                 user.Email,
		"role":                  user.Role,
		"is_active":             user.IsActive,
		"email_verified":        user.EmailVerified,
		"failed_login_attempts": user.FailedLoginAttempts,
		"locked_until":          user.LockedUntil,
		"last_login":            user.LastLogin,
		"created_at":            user.CreatedAt,
	}})
}
