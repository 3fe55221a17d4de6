package auth

import (
	"errors"
	"fmt"
	"time"
)

// Authentication failures (unknown user, wrong password) collapse to this
// one message so responses cannot be used to enumerate accounts. The audit
// log retains the specific reason.
var ErrInvalidCredentials = errors.New("Credenciales incorrectas")

// Authorization failures carry specific messages; they are not
// credential-guessing signals.
var (
	ErrAccountInactive = errors.New("Tu cuenta ha sido desactivada. Contacta al administrador")
	ErrEmailTaken      = errors.New("Este correo electrónico ya está registrado")
	ErrUserNotFound    = errors.New("Usuario no encontrado")
	ErrAlreadyVerified = errors.New("Usuario ya verificado")
	ErrInvalidRefresh  = errors.New("Sesión inválida. Inicia sesión nuevamente")
)

// RateLimitedError is returned when the client identifier is blocked or
// blacklisted before any credential is examined.
type RateLimitedError struct {
	BlockedUntil *time.Time
	Blacklisted  bool
	now          time.Time
}

func (e *RateLimitedError) Error() string {
	if e.Blacklisted {
		return "Tu IP ha sido bloqueada permanentemente por actividad sospechosa"
	}
	if e.BlockedUntil != nil {
		minutes := int(e.BlockedUntil.Sub(e.now).Minutes()) + 1
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("Demasiados intentos fallidos. Intenta de nuevo en %d minutos", minutes)
	}
	return "Demasiados intentos. Intenta más tarde"
}

// AccountLockedError is returned while the account lockout window is active.
// The password is not examined during the window.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("Cuenta bloqueada temporalmente. Intenta nuevamente después de %s", e.Until.Format("15:04:05"))
}
