// Package auth issues and verifies the platform's access and refresh tokens
// and gates requests on the identity they carry.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
)

const issuer = "clipstream"

var (
	// ErrTokenInvalid indicates the token is malformed, forged or not ours.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired indicates the token was valid but has expired.
	ErrTokenExpired = errors.New("auth: token expired")
)

// AccessClaims is the payload embedded in access tokens. The account id
// travels in the registered "sub" claim.
type AccessClaims struct {
	Email       string `json:"email"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens with separate
// HMAC secrets.
type TokenService struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration

	now func() time.Time
}

// NewTokenService constructs a TokenService. Both secrets must be at least
// 16 bytes.
func NewTokenService(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: token secrets must be at least 16 characters")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		accessTTL:     accessTTL,
		refreshSecret: []byte(refreshSecret),
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssueAccessToken signs a short-lived token embedding the account's public
// identity fields.
func (s *TokenService) IssueAccessToken(account models.Account) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Email:       account.Email,
		Handle:      account.Handle,
		DisplayName: account.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(account.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a longer-lived token embedding only the account id.
// Each token carries a fresh jti: numeric dates have second precision, and two
// tokens issued within the same second must still be distinct strings or
// rotation would store an identical value and leave the old token accepted.
func (s *TokenService) IssueRefreshToken(accountID models.AccountID) (string, error) {
	now := s.now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(accountID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, expiry and issuer, returning the
// embedded claims.
func (s *TokenService) VerifyAccessToken(tokenStr string) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.verify(tokenStr, s.accessSecret, &claims); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefreshToken checks signature, expiry and issuer, returning the
// account id the token was issued to. Callers must additionally compare the
// token against the value stored on the account; a signature-valid token that
// no longer matches has been superseded.
func (s *TokenService) VerifyRefreshToken(tokenStr string) (models.AccountID, error) {
	var claims refreshClaims
	if err := s.verify(tokenStr, s.refreshSecret, &claims); err != nil {
		return "", err
	}
	return models.AccountID(claims.Subject), nil
}

func (s *TokenService) verify(tokenStr string, secret []byte, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return ErrTokenInvalid
	}

	return nil
}
