package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/audit"
	"github.com/medstore/storefront-auth/internal/auth"
	"github.com/medstore/storefront-auth/internal/models"
	"github.com/medstore/storefront-auth/internal/ratelimit"
	"github.com/medstore/storefront-auth/internal/security"
	"github.com/medstore/storefront-auth/internal/verification"
)

type stubSender struct {
	lastCode string
}

func (s *stubSender) SendVerificationCode(to, name, code string) error {
	s.lastCode = code
	return nil
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	tokens *security.TokenService
	sender *stubSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, errOpen := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.ActiveSession{}, &models.AuditLog{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	tokens := security.NewTokenService("access-secret", "refresh-secret")
	limiter := ratelimit.NewMemoryStore(nil)
	recorder := audit.NewRecorder(db, nil)
	sender := &stubSender{}
	verifier := verification.NewService(db, sender, nil)
	svc := auth.NewService(db, tokens, limiter, recorder, verifier, nil)

	engine := gin.New()
	RegisterRoutes(engine, db, svc, tokens, recorder, limiter)
	return &testServer{engine: engine, db: db, tokens: tokens, sender: sender}
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	hash, errHash := security.HashPassword("Abcd123!")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{
		Name:          "Ana Ruiz",
		Email:         email,
		Password:      hash,
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
	}
	if errCreate := s.db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func (s *testServer) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, errIssue := s.tokens.IssueAccessToken(user)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func TestRegisterVerifyLoginOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, http.MethodPost, "/v0/auth/register", "", gin.H{
		"name": "Ana Ruiz", "email": "ana@x.com", "password": "Abcd123!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["requiresVerification"] != true {
		t.Fatalf("expected requiresVerification, got %v", body)
	}

	rec = srv.request(t, http.MethodPost, "/v0/auth/verify-code", "", gin.H{
		"email": "ana@x.com", "code": srv.sender.lastCode,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = srv.request(t, http.MethodPost, "/v0/auth/login", "", gin.H{
		"email": "ana@x.com", "password": "Abcd123!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected access token in body, got %v", body)
	}

	var refreshCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			refreshCookie = cookie
		}
	}
	if refreshCookie == nil || !refreshCookie.HttpOnly || !refreshCookie.Secure {
		t.Fatalf("expected HttpOnly Secure refresh cookie, got %+v", refreshCookie)
	}
	if refreshCookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", refreshCookie.SameSite)
	}

	// The issued token authenticates /me.
	rec = srv.request(t, http.MethodGet, "/v0/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestLogin_InvalidBodyAndValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "not-an-email", "password": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = srv.request(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "ghost@x.com", "password": "Abcd123!"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "ana@x.com", models.RoleStandard)

	rec := srv.request(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "ana@x.com", "password": "Abcd123!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()

	req := httptest.NewRequest(http.MethodPost, "/v0/auth/refresh", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	refreshRec := httptest.NewRecorder()
	srv.engine.ServeHTTP(refreshRec, req)
	if refreshRec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", refreshRec.Code, refreshRec.Body.String())
	}
	if token, _ := decodeBody(t, refreshRec)["token"].(string); token == "" {
		t.Fatalf("expected fresh access token")
	}

	// Missing cookie is a 401.
	rec = srv.request(t, http.MethodPost, "/v0/auth/refresh", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.request(t, http.MethodGet, "/v0/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = srv.request(t, http.MethodGet, "/v0/auth/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdministrator(t *testing.T) {
	srv := newTestServer(t)
	standard := srv.createUser(t, "user@x.com", models.RoleStandard)
	admin := srv.createUser(t, "admin@x.com", models.RoleAdministrator)

	rec := srv.request(t, http.MethodGet, "/v0/admin/users", srv.tokenFor(t, standard), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for standard role, got %d", rec.Code)
	}

	var denied models.AuditLog
	if errFind := srv.db.Where("event_type = ?", models.EventUnauthorizedAccess).First(&denied).Error; errFind != nil {
		t.Fatalf("expected unauthorized_access audit row: %v", errFind)
	}

	rec = srv.request(t, http.MethodGet, "/v0/admin/users", srv.tokenFor(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d, body %s", rec.Code, rec.Body.String())
	}
	listing := rec.Body.String()
	if bytes.Contains([]byte(listing), []byte("password")) {
		t.Fatalf("user listing leaks password field: %s", listing)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	srv := newTestServer(t)
	standard := srv.createUser(t, "user@x.com", models.RoleStandard)
	admin := srv.createUser(t, "admin@x.com", models.RoleAdministrator)
	adminToken := srv.tokenFor(t, admin)

	rec := srv.request(t, http.MethodPut, fmt.Sprintf("/v0/admin/users/%d", standard.ID), adminToken, gin.H{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, body %s", rec.Code, rec.Body.String())
	}

	var reloaded models.User
	if errFind := srv.db.First(&reloaded, standard.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.IsActive {
		t.Fatalf("expected deactivated user")
	}

	// Administrators cannot deactivate their own account.
	rec = srv.request(t, http.MethodPut, fmt.Sprintf("/v0/admin/users/%d", admin.ID), adminToken, gin.H{"is_active": false})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on self-deactivation, got %d", rec.Code)
	}

	rec = srv.request(t, http.MethodPut, fmt.Sprintf("/v0/admin/users/%d", standard.ID), adminToken, gin.H{"role": "superuser"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid role, got %d", rec.Code)
	}

	rec = srv.request(t, http.MethodPut, "/v0/admin/users/99999", adminToken, gin.H{"is_active": false})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestAdminAuditLogsAndUnblacklist(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.createUser(t, "admin@x.com", models.RoleAdministrator)
	adminToken := srv.tokenFor(t, admin)

	srv.request(t, http.MethodPost, "/v0/auth/login", "", gin.H{"email": "ghost@x.com", "password": "Abcd123!"})

	rec := srv.request(t, http.MethodGet, "/v0/admin/audit-logs?event_type=login_failed", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit-logs status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	logs, _ := body["logs"].([]any)
	if len(logs) == 0 {
		t.Fatalf("expected at least one login_failed entry")
	}

	rec = srv.request(t, http.MethodPost, "/v0/admin/ratelimit/unblacklist", adminToken, gin.H{"identifier": "192.0.2.1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unblacklist status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = srv.request(t, http.MethodPost, "/v0/admin/ratelimit/unblacklist", adminToken, gin.H{"identifier": " "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty identifier, got %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser(t, "ana@x.com", models.RoleStandard)

	rec := srv.request(t, http.MethodPost, "/v0/auth/logout", srv.tokenFor(t, user), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	var cleared *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			cleared = cookie
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected expired empty refresh cookie, got %+v", cleared)
	}

	var logRow models.AuditLog
	if errFind := srv.db.Where("event_type = ?", models.EventLogout).First(&logRow).Error; errFind != nil {
		t.Fatalf("expected logout audit row: %v", errFind)
	}

	// Without a token the cookie is still cleared.
	rec = srv.request(t, http.MethodPost, "/v0/auth/logout", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous logout status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.request(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
