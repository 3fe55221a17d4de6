package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/audit"
	"github.com/medstore/storefront-auth/internal/models"
	"github.com/medstore/storefront-auth/internal/ratelimit"
	"github.com/medstore/storefront-auth/internal/security"
	"github.com/medstore/storefront-auth/internal/validation"
	"github.com/medstore/storefront-auth/internal/verification"
)

// Account lockout parameters. Independent from the per-IP limiter: the
// limiter tracks a client identifier, the lockout tracks the account.
const (
	lockThreshold = 5
	lockDuration  = 30 * time.Minute
)

// Session lifetime persisted alongside the issued access token.
const sessionExpiry = 24 * time.Hour

// ClientInfo carries the request-derived identity of the caller.
type ClientInfo struct {
	Identifier string // Rate limiter key, usually the client IP.
	IPAddress  string
	UserAgent  string
}

// SanitizedUser is the client-facing projection of a user row. It never
// carries the password hash.
type SanitizedUser struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult is the successful login payload. The refresh token is set as
// a cookie by the handler, never in the JSON body.
type LoginResult struct {
	User         SanitizedUser
	AccessToken  string
	RefreshToken string
}

// RegisterResult reports a completed registration pending verification.
type RegisterResult struct {
	User                 SanitizedUser
	RequiresVerification bool
}

// Service sequences the auth components against the user store: rate
// limiter admission, lookups, lockout, credential checks, token issuance,
// session bookkeeping, and audit.
type Service struct {
	db       *gorm.DB
	tokens   *security.TokenService
	limiter  ratelimit.Store
	recorder *audit.Recorder
	verifier *verification.Service
	nowFn    func() time.Time
}

// NewService constructs a Service. A nil nowFn uses the wall clock.
func NewService(db *gorm.DB, tokens *security.TokenService, limiter ratelimit.Store, recorder *audit.Recorder, verifier *verification.Service, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		db:       db,
		tokens:   tokens,
		limiter:  limiter,
		recorder: recorder,
		verifier: verifier,
		nowFn:    nowFn,
	}
}

func sanitize(user *models.User) SanitizedUser {
	return SanitizedUser{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// Login runs the login state machine: rate-limit admission, user lookup,
// active check, lock check, password check, then success bookkeeping. Each
// gate short-circuits with a typed error; the lockout state is read fresh
// from the row on every call.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	now := s.nowFn()
	email = validation.NormalizeEmail(email)

	limit := s.limiter.Check(client.Identifier)
	if !limit.Allowed {
		s.recorder.Record(ctx, audit.Entry{
			EventType: models.EventLoginFailed,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"reason": "Rate limit exceeded", "blacklisted": limit.Blacklisted},
			Success:   false,
		})
		return nil, &RateLimitedError{BlockedUntil: limit.BlockedUntil, Blacklisted: limit.Blacklisted, now: now}
	}

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auth: login lookup: %w", errFind)
		}
		s.limiter.RecordFailure(client.Identifier)
		s.recorder.Record(ctx, audit.Entry{
			EventType: models.EventLoginFailed,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"email": email, "reason": "User not found"},
			Success:   false,
		})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		// Administrative deactivation is not a guessing signal; the
		// limiter is not charged.
		s.recorder.Record(ctx, audit.Entry{
			UserID:    &user.ID,
			EventType: models.EventLoginFailed,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"reason": "Account inactive"},
			Success:   false,
		})
		return nil, ErrAccountInactive
	}

	if user.IsLocked(now) {
		s.recorder.Record(ctx, audit.Entry{
			UserID:    &user.ID,
			EventType: models.EventLoginFailed,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"reason": "Account locked", "lockedUntil": user.LockedUntil},
			Success:   false,
		})
		return nil, &AccountLockedError{Until: *user.LockedUntil}
	}

	if !security.VerifyPassword(password, user.Password) {
		if errFail := s.registerPasswordFailure(ctx, &user, client, now); errFail != nil {
			return nil, errFail
		}
		return nil, ErrInvalidCredentials
	}

	return s.completeLogin(ctx, &user, client, now)
}

// registerPasswordFailure charges the limiter, bumps the account counter
// atomically, and locks the account when the threshold is crossed.
func (s *Service) registerPasswordFailure(ctx context.Context, user *models.User, client ClientInfo, now time.Time) error {
	s.limiter.RecordFailure(client.Identifier)

	newAttempts := user.FailedLoginAttempts + 1
	updates := map[string]any{
		"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
	}
	var lockedUntil time.Time
	if newAttempts >= lockThreshold {
		lockedUntil = now.Add(lockDuration)
		updates["locked_until"] = lockedUntil
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("auth: record failed attempt: %w", errUpdate)
	}

	if newAttempts >= lockThreshold {
		s.recorder.Record(ctx, audit.Entry{
			UserID:    &user.ID,
			EventType: models.EventAccountLocked,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"attempts": newAttempts, "lockedUntil": lockedUntil},
			Success:   false,
		})
	}
	s.recorder.Record(ctx, audit.Entry{
		UserID:    &user.ID,
		EventType: models.EventLoginFailed,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Metadata:  map[string]any{"reason": "Invalid password", "attempts": newAttempts},
		Success:   false,
	})
	return nil
}

// completeLogin resets counters, issues both tokens, persists the refresh
// token and active session rows, and audits the success.
func (s *Service) completeLogin(ctx context.Context, user *models.User, client ClientInfo, now time.Time) (*LoginResult, error) {
	if errReset := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login":            now.UTC(),
		}).Error; errReset != nil {
		return nil, fmt.Errorf("auth: reset login state: %w", errReset)
	}

	s.limiter.Reset(client.Identifier)

	if s.recorder.DetectSuspiciousActivity(ctx, user.ID) {
		log.WithField("user_id", user.ID).Warn("auth: suspicious activity detected")
	}

	accessToken, errAccess := s.tokens.IssueAccessToken(user)
	if errAccess != nil {
		return nil, fmt.Errorf("auth: issue access token: %w", errAccess)
	}
	refreshToken, errRefresh := s.tokens.IssueRefreshToken(user)
	if errRefresh != nil {
		return nil, fmt.Errorf("auth: issue refresh token: %w", errRefresh)
	}

	if errToken := s.db.WithContext(ctx).Create(&models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		ExpiresAt: now.Add(security.RefreshTokenExpiry).UTC(),
		CreatedAt: now.UTC(),
	}).Error; errToken != nil {
		return nil, fmt.Errorf("auth: persist refresh token: %w", errToken)
	}
	if errSession := s.db.WithContext(ctx).Create(&models.ActiveSession{
		UserID:       user.ID,
		SessionToken: accessToken,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		ExpiresAt:    now.Add(sessionExpiry).UTC(),
		CreatedAt:    now.UTC(),
	}).Error; errSession != nil {
		return nil, fmt.Errorf("auth: persist session: %w", errSession)
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:    &user.ID,
		EventType: models.EventLoginSuccess,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Metadata:  map[string]any{"email": user.Email},
		Success:   true,
	})

	return &LoginResult{
		User:         sanitize(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Register creates an unverified account and issues a verification code.
// Duplicate submissions are resolved by the unique index on email, not by
// application-level locking. Code delivery is best-effort: registration
// succeeds even when the mail provider fails.
func (s *Service) Register(ctx context.Context, name, email, password string, client ClientInfo) (*RegisterResult, error) {
	email = validation.NormalizeEmail(email)

	limit := s.limiter.Check(client.Identifier)
	if !limit.Allowed {
		s.recorder.Record(ctx, audit.Entry{
			EventType: models.EventRegister,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"reason": "Rate limit exceeded"},
			Success:   false,
		})
		return nil, &RateLimitedError{BlockedUntil: limit.BlockedUntil, Blacklisted: limit.Blacklisted, now: s.nowFn()}
	}

	var existing models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if errFind == nil {
		s.limiter.RecordFailure(client.Identifier)
		s.recorder.Record(ctx, audit.Entry{
			EventType: models.EventRegister,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"email": email, "reason": "Email already exists"},
			Success:   false,
		})
		return nil, ErrEmailTaken
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("auth: register lookup: %w", errFind)
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, fmt.Errorf("auth: %w", errHash)
	}

	now := s.nowFn().UTC()
	user := models.User{
		Name:      name,
		Email:     email,
		Password:  hash,
		Role:      models.RoleStandard,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		// Concurrent duplicate registrations land here via the unique
		// index; report them the same as the pre-check.
		s.recorder.Record(ctx, audit.Entry{
			EventType: models.EventRegister,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
			Metadata:  map[string]any{"email": email, "reason": "Insert failed"},
			Success:   false,
		})
		return nil, ErrEmailTaken
	}

	if errIssue := s.verifier.Issue(ctx, &user); errIssue != nil {
		log.WithError(errIssue).WithField("email", email).Warn("auth: verification code issue failed")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:    &user.ID,
		EventType: models.EventRegister,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Metadata:  map[string]any{"email": email},
		Success:   true,
	})

	return &RegisterResult{User: sanitize(&user), RequiresVerification: true}, nil
}

// SendVerification regenerates and redelivers a verification code.
func (s *Service) SendVerification(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("auth: send verification lookup: %w", errFind)
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.verifier.Issue(ctx, &user)
}

// VerifyCode validates a submitted verification code for the email.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (verification.Outcome, error) {
	return s.verifier.Verify(ctx, validation.NormalizeEmail(email), code)
}

// Refresh validates the refresh token against its signature and the stored
// row, then issues a fresh access token with a matching session record.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	now := s.nowFn()

	claims, errParse := s.tokens.ParseRefreshToken(refreshToken)
	if errParse != nil {
		return nil, ErrInvalidRefresh
	}

	var stored models.RefreshToken
	errFind := s.db.WithContext(ctx).Where("token = ?", refreshToken).First(&stored).Error
	if errFind != nil || stored.UserID != claims.UserID || now.After(stored.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	var user models.User
	if errUser := s.db.WithContext(ctx).First(&user, claims.UserID).Error; errUser != nil {
		return nil, ErrInvalidRefresh
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	accessToken, errAccess := s.tokens.IssueAccessToken(&user)
	if errAccess != nil {
		return nil, fmt.Errorf("auth: issue access token: %w", errAccess)
	}
	if errSession := s.db.WithContext(ctx).Create(&models.ActiveSession{
		UserID:       user.ID,
		SessionToken: accessToken,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		ExpiresAt:    now.Add(sessionExpiry).UTC(),
		CreatedAt:    now.UTC(),
	}).Error; errSession != nil {
		return nil, fmt.Errorf("auth: persist session: %w", errSession)
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:    &user.ID,
		EventType: models.EventTokenRefresh,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Success:   true,
	})

	return &LoginResult{User: sanitize(&user), AccessToken: accessToken}, nil
}

// Logout audits the event. Server-side refresh and session rows are not
// revoked early; they age out by expiry. The handler clears the cookie.
func (s *Service) Logout(ctx context.Context, userID uint64, client ClientInfo) {
	s.recorder.Record(ctx, audit.Entry{
		UserID:    &userID,
		EventType: models.EventLogout,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Success:   true,
	})
}

// CurrentUser loads the sanitized profile for an authenticated user id.
func (s *Service) CurrentUser(ctx context.Context, userID uint64) (*SanitizedUser, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: current user lookup: %w", errFind)
	}
	out := sanitize(&user)
	return &out, nil
}
