package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/mail"
	"github.com/medstore/storefront-auth/internal/models"
)

// CodeTTL is how long an issued verification code stays valid.
const CodeTTL = 15 * time.Minute

// Outcome classifies a verification attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidCode
	OutcomeExpired
	OutcomeAlreadyVerified
)

// ErrDelivery wraps mail failures so callers can treat them as non-fatal:
// the code is already persisted and the user can request a resend.
var ErrDelivery = errors.New("verification: delivery failed")

// Service generates, stores, and validates email verification codes.
type Service struct {
	db     *gorm.DB
	sender mail.Sender
	nowFn  func() time.Time
}

// NewService constructs a Service. A nil nowFn uses the wall clock.
func NewService(db *gorm.DB, sender mail.Sender, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{db: db, sender: sender, nowFn: nowFn}
}

// GenerateCode returns a 6-digit code uniformly distributed over
// 000000-999999.
func GenerateCode() (string, error) {
	n, errRand := rand.Int(rand.Reader, big.NewInt(1000000))
	if errRand != nil {
		return "", fmt.Errorf("verification: generate code: %w", errRand)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue generates a fresh code, persists it on the user row (overwriting any
// prior unconsumed code), and hands it to the mail sender. A delivery failure
// returns ErrDelivery but leaves the persisted code in place.
func (s *Service) Issue(ctx context.Context, user *models.User) error {
	code, errGen := GenerateCode()
	if errGen != nil {
		return errGen
	}
	expires := s.nowFn().UTC().Add(CodeTTL)

	errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"verification_code":         code,
			"verification_code_expires": expires,
		}).Error
	if errUpdate != nil {
		return fmt.Errorf("verification: persist code: %w", errUpdate)
	}

	if s.sender == nil {
		return ErrDelivery
	}
	if errSend := s.sender.SendVerificationCode(user.Email, user.Name, code); errSend != nil {
		log.WithError(errSend).WithField("email", user.Email).Warn("verification: code delivery failed")
		return ErrDelivery
	}
	return nil
}

// Verify matches the submitted code against the stored one for the email.
// On match and non-expiry it flips email_verified and clears the code
// atomically with the match, so a consumed code cannot be replayed. The
// outcome never reveals whether the email exists beyond what registration
// already does.
func (s *Service) Verify(ctx context.Context, email, code string) (Outcome, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return OutcomeInvalidCode, nil
		}
		return OutcomeInvalidCode, fmt.Errorf("verification: lookup: %w", errFind)
	}

	if user.EmailVerified {
		return OutcomeAlreadyVerified, nil
	}
	if user.VerificationCode == nil || *user.VerificationCode != code {
		return OutcomeInvalidCode, nil
	}
	if user.VerificationCodeExpires == nil || s.nowFn().After(*user.VerificationCodeExpires) {
		return OutcomeExpired, nil
	}

	// The code match is re-checked in the update predicate: a concurrent
	// consume leaves zero affected rows instead of double-verifying.
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verification_code = ? AND email_verified = ?", user.ID, code, false).
		Updates(map[string]any{
			"email_verified":            true,
			"verification_code":         nil,
			"verification_code_expires": nil,
		})
	if res.Error != nil {
		return OutcomeInvalidCode, fmt.Errorf("verification: consume code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OutcomeInvalidCode, nil
	}
	return OutcomeSuccess, nil
}
