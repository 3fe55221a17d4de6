package models

import "time"

// RefreshToken stores a long-lived credential issued alongside a login.
// Rows are immutable; a token ages out by expiry comparison at use time.
type RefreshToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                 // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`              // Owning user.
	Token  string `gorm:"type:text;not null;uniqueIndex"` // Signed refresh token.

	IPAddress string `gorm:"type:text"` // Issuing client IP.
	UserAgent string `gorm:"type:text"` // Issuing client user agent.

	ExpiresAt time.Time `gorm:"not null;index"`          // Expiry, 7 days after issue.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// ActiveSession records one login event. A user may hold many concurrent rows;
// sessions are not deduplicated per user.
type ActiveSession struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID       uint64 `gorm:"not null;index"`                 // Owning user ID.
	User         *User  `gorm:"foreignKey:UserID"`              // Owning user.
	SessionToken string `gorm:"type:text;not null;uniqueIndex"` // Access token issued for the session.

	IPAddress string `gorm:"type:text"` // Client IP at login.
	UserAgent string `gorm:"type:text"` // Client user agent at login.

	ExpiresAt time.Time `gorm:"not null;index"`          // Expiry, 24 hours after issue.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
