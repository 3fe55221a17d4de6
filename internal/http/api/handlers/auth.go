package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/medstore/storefront-auth/internal/auth"
	"github.com/medstore/storefront-auth/internal/security"
	"github.com/medstore/storefront-auth/internal/validation"
	"github.com/medstore/storefront-auth/internal/verification"
)

// refreshCookieName is the cookie carrying the refresh token. HttpOnly,
// Secure, SameSite=Strict; never present in a JSON body.
const refreshCookieName = "refresh_token"

// AuthHandler exposes the login, registration, and verification endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues both tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	identifier, ipAddress, userAgent := clientInfo(c)
	client := auth.ClientInfo{Identifier: identifier, IPAddress: ipAddress, UserAgent: userAgent}

	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cuerpo de la solicitud inválido"})
		return
	}
	if errValidate := validation.ValidateLogin(body.Email, body.Password); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errValidate.Error()})
		return
	}

	result, errLogin := h.svc.Login(c.Request.Context(), body.Email, body.Password, client)
	if errLogin != nil {
		respondLoginError(c, errLogin)
		return
	}

	setRefreshCookie(c, result.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Inicio de sesión exitoso",
		"user":    result.User,
		"token":   result.AccessToken,
	})
}

func respondLoginError(c *gin.Context, errLogin error) {
	var rateLimited *auth.RateLimitedError
	var locked *auth.AccountLockedError
	switch {
	case errors.As(errLogin, &rateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": rateLimited.Error()})
	case errors.Is(errLogin, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": errLogin.Error()})
	case errors.Is(errLogin, auth.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": errLogin.Error()})
	case errors.As(errLogin, &locked):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": locked.Error()})
	default:
		log.WithError(errLogin).Error("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error al iniciar sesión"})
	}
}

// registerRequest defines the request body for registration.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and triggers the verification email.
func (h *AuthHandler) Register(c *gin.Context) {
	identifier, ipAddress, userAgent := clientInfo(c)
	client := auth.ClientInfo{Identifier: identifier, IPAddress: ipAddress, UserAgent: userAgent}

	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cuerpo de la solicitud inválido"})
		return
	}
	if errValidate := validation.ValidateRegistration(body.Name, body.Email, body.Password); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errValidate.Error()})
		return
	}

	result, errRegister := h.svc.Register(c.Request.Context(), body.Name, body.Email, body.Password, client)
	if errRegister != nil {
		var rateLimited *auth.RateLimitedError
		switch {
		case errors.As(errRegister, &rateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Demasiados intentos. Intenta más tarde"})
		case errors.Is(errRegister, auth.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": errRegister.Error()})
		default:
			log.WithError(errRegister).Error("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error al registrar usuario"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":              true,
		"message":              "Usuario registrado. Revisa tu correo para verificar tu cuenta",
		"requiresVerification": result.RequiresVerification,
		"email":                result.User.Email,
	})
}

// Me returns the sanitized profile for the bearer token's user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := UserIDFromContext(c)
	user, errUser := h.svc.CurrentUser(c.Request.Context(), userID)
	if errUser != nil {
		if errors.Is(errUser, auth.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Usuario no encontrado"})
			return
		}
		log.WithError(errUser).Error("current user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error al verificar autenticación"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// emailRequest defines a body carrying only an email.
type emailRequest struct {
	Email string `json:"email"`
}

// SendVerification regenerates and redelivers the verification code.
func (h *AuthHandler) SendVerification(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email requerido"})
		return
	}

	errSend := h.svc.SendVerification(c.Request.Context(), body.Email)
	switch {
	case errSend == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Código de verificación enviado a tu correo"})
	case errors.Is(errSend, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": errSend.Error()})
	case errors.Is(errSend, auth.ErrAlreadyVerified):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": errSend.Error()})
	case errors.Is(errSend, verification.ErrDelivery):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error al enviar el código de verificación"})
	default:
		log.WithError(errSend).Error("send verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error del servidor"})
	}
}

// verifyCodeRequest defines the request body for code verification.
type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCode validates a submitted verification code.
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var body verifyCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Email == "" || body.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email y código requeridos"})
		return
	}

	outcome, errVerify := h.svc.VerifyCode(c.Request.Context(), body.Email, body.Code)
	if errVerify != nil {
		log.WithError(errVerify).Error("verify code failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error del servidor"})
		return
	}

	switch outcome {
	case verification.OutcomeSuccess:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cuenta verificada exitosamente. Ya puedes iniciar sesión."})
	case verification.OutcomeAlreadyVerified:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Usuario ya verificado"})
	case verification.OutcomeExpired:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "El código de verificación ha expirado. Solicita uno nuevo."})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Código de verificación inválido"})
	}
}

// Refresh issues a fresh access token from the refresh cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	_, ipAddress, userAgent := clientInfo(c)
	client := auth.ClientInfo{IPAddress: ipAddress, UserAgent: userAgent}

	cookie, errCookie := c.Cookie(refreshCookieName)
	if errCookie != nil || cookie == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Sesión inválida. Inicia sesión nuevamente"})
		return
	}

	result, errRefresh := h.svc.Refresh(c.Request.Context(), cookie, client)
	if errRefresh != nil {
		switch {
		case errors.Is(errRefresh, auth.ErrInvalidRefresh):
			clearRefreshCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": errRefresh.Error()})
		case errors.Is(errRefresh, auth.ErrAccountInactive):
			clearRefreshCookie(c)
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": errRefresh.Error()})
		default:
			log.WithError(errRefresh).Error("token refresh failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error del servidor"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    result.User,
		"token":   result.AccessToken,
	})
}

// Logout clears the refresh cookie. Server-side rows age out by expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	_, ipAddress, userAgent := clientInfo(c)
	if userID := UserIDFromContext(c); userID != 0 {
		h.svc.Logout(c.Request.Context(), userID, auth.ClientInfo{IPAddress: ipAddress, UserAgent: userAgent})
	}
	clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sesión cerrada"})
}

func setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(security.RefreshTokenExpiry.Seconds()), "/", "", true, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", true, true)
}
