package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit event types recorded by the auth core. The set is closed; handlers
// must not invent ad-hoc event names.
const (
	EventLoginSuccess          = "login_success"
	EventLoginFailed           = "login_failed"
	EventLogout                = "logout"
	EventRegister              = "register"
	EventPasswordChange        = "password_change"
	EventPasswordResetRequest  = "password_reset_request"
	EventPasswordResetComplete = "password_reset_complete"
	EventAccountLocked         = "account_locked"
	EventSuspiciousActivity    = "suspicious_activity"
	EventTokenRefresh          = "token_refresh"
	EventUnauthorizedAccess    = "unauthorized_access_attempt"
)

// AuditLog is an append-only record of a security-relevant event. Rows are
// never updated or deleted by the auth core.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID *uint64 `gorm:"index"`               // Subject user, nil for pre-authentication failures.
	User   *User   `gorm:"foreignKey:UserID"`   // Subject user.

	EventType string `gorm:"type:text;not null;index"` // One of the Event* constants.

	IPAddress string         `gorm:"type:text"` // Source IP.
	UserAgent string         `gorm:"type:text"` // Source user agent.
	Metadata  datatypes.JSON // Event-specific structured detail.
	Success   bool           `gorm:"not null;default:false"` // Whether the underlying operation succeeded.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
