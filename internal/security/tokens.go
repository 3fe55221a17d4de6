package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medstore/storefront-auth/internal/models"
)

// Token issuer and audience claims stamped on every token.
const (
	TokenIssuer   = "storefront"
	TokenAudience = "storefront-app"
)

// Default token lifetimes.
const (
	AccessTokenExpiry  = 24 * time.Hour
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// refreshTokenKind marks refresh tokens so an access-token verifier cannot
// be tricked into accepting one and vice versa.
const refreshTokenKind = "refresh"

// ErrInvalidToken is returned for any token that fails verification. The
// cause (bad signature, expiry, wrong issuer or audience, malformed input)
// is deliberately not distinguished to the caller.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token.
type RefreshClaims struct {
	UserID    uint64 `json:"user_id"`
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, self-contained access and refresh
// tokens. The two kinds are signed with independent secrets so compromise of
// one cannot forge the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFn         func() time.Time
}

// NewTokenService constructs a TokenService with default expiries.
func NewTokenService(accessSecret, refreshSecret string) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  AccessTokenExpiry,
		refreshExpiry: RefreshTokenExpiry,
		nowFn:         time.Now,
	}
}

// WithNowFunc overrides the clock, for tests.
func (s *TokenService) WithNowFunc(nowFn func() time.Time) *TokenService {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

// IssueAccessToken signs a new access token for the user.
func (s *TokenService) IssueAccessToken(user *models.User) (string, error) {
	now := s.nowFn()
	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// IssueRefreshToken signs a new refresh token for the user.
func (s *TokenService) IssueRefreshToken(user *models.User) (string, error) {
	now := s.nowFn()
	claims := RefreshClaims{
		UserID:    user.ID,
		TokenKind: refreshTokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// ParseAccessToken verifies an access token and returns its claims. Signature,
// expiry, issuer, and audience are all checked; any failure yields
// ErrInvalidToken with no partial decode.
func (s *TokenService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if errParse := s.parse(tokenString, claims, s.accessSecret); errParse != nil {
		return nil, errParse
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token and returns its claims. A token
// missing the refresh kind marker is rejected even when correctly signed.
func (s *TokenService) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if errParse := s.parse(tokenString, claims, s.refreshSecret); errParse != nil {
		return nil, errParse
	}
	if claims.TokenKind != refreshTokenKind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, errParse := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFn),
	)
	if errParse != nil || token == nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
