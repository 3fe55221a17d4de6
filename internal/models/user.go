package models

import "time"

// Role values assignable to a user account.
const (
	RoleStandard      = "standard"
	RoleAdministrator = "administrator"
)

// User represents a storefront account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`             // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email, stored lowercase.
	Password string `gorm:"type:text;not null"`             // Hashed password.
	Role     string `gorm:"type:text;not null;default:standard"` // Account role.

	IsActive      bool `gorm:"not null;default:true"`  // Whether the account can sign in.
	EmailVerified bool `gorm:"not null;default:false"` // Whether email ownership was proven.

	FailedLoginAttempts int        `gorm:"not null;default:0"` // Consecutive failed password checks.
	LockedUntil         *time.Time // Account lockout expiry, nil when not locked.
	LastLogin           *time.Time // Last successful login timestamp.

	VerificationCode        *string    `gorm:"type:text"` // Pending 6-digit verification code.
	VerificationCodeExpires *time.Time // Verification code expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsAdministrator reports whether the user holds the administrator role.
func (u *User) IsAdministrator() bool {
	return u != nil && u.Role == RoleAdministrator
}

// IsLocked reports whether the account lockout is active at the given time.
func (u *User) IsLocked(now time.Time) bool {
	return u != nil && u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
