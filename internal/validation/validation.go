package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Field limits shared by registration and login.
const (
	NameMinLen     = 2
	NameMaxLen     = 255
	EmailMinLen    = 5
	EmailMaxLen    = 255
	PasswordMinLen = 8
	PasswordMaxLen = 100
)

// passwordSpecials is the accepted special-character set.
const passwordSpecials = "@$!%*?&"

var (
	nameRe  = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑ\s]+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Validation errors carry the exact client-facing message; the first
// violation is returned verbatim with a 400.
var (
	ErrNameTooShort    = errors.New("El nombre debe tener al menos 2 caracteres")
	ErrNameTooLong     = errors.New("El nombre no puede exceder 255 caracteres")
	ErrNameCharset     = errors.New("El nombre solo puede contener letras y espacios")
	ErrEmailInvalid    = errors.New("Email inválido")
	ErrEmailTooShort   = errors.New("El email debe tener al menos 5 caracteres")
	ErrEmailTooLong    = errors.New("El email no puede exceder 255 caracteres")
	ErrPasswordShort   = errors.New("La contraseña debe tener al menos 8 caracteres")
	ErrPasswordLong    = errors.New("La contraseña no puede exceder 100 caracteres")
	ErrPasswordClasses = errors.New("La contraseña debe contener al menos una mayúscula, una minúscula, un número y un carácter especial (@$!%*?&)")
	ErrPasswordMissing = errors.New("La contraseña es requerida")
)

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName checks the display name shape.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < NameMinLen {
		return ErrNameTooShort
	}
	if len(name) > NameMaxLen {
		return ErrNameTooLong
	}
	if !nameRe.MatchString(name) {
		return ErrNameCharset
	}
	return nil
}

// ValidateEmail checks the normalized email shape.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if len(email) < EmailMinLen {
		return ErrEmailTooShort
	}
	if len(email) > EmailMaxLen {
		return ErrEmailTooLong
	}
	if !emailRe.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// ValidatePassword enforces length and the four character classes.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLen {
		return ErrPasswordShort
	}
	if len(password) > PasswordMaxLen {
		return ErrPasswordLong
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return ErrPasswordClasses
	}
	return nil
}

// ValidateRegistration returns the first violation among name, email, and
// password.
func ValidateRegistration(name, email, password string) error {
	if errName := ValidateName(name); errName != nil {
		return errName
	}
	if errEmail := ValidateEmail(email); errEmail != nil {
		return errEmail
	}
	return ValidatePassword(password)
}

// ValidateLogin checks the login input shape. The password only needs to be
// present; its strength was enforced at registration.
func ValidateLogin(email, password string) error {
	if errEmail := ValidateEmail(email); errEmail != nil {
		return errEmail
	}
	if password == "" {
		return ErrPasswordMissing
	}
	return nil
}
