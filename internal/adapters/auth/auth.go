// Package auth issues and verifies the admin bearer tokens that gate list edits.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role allowed to edit the list.
const RoleAdmin = "admin"

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 12 * time.Hour

const issuer = "demonlist"

// Claims are the JWT claims carried by an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator checks admin passwords and signs HS256 tokens.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
	log          logger.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithAdmin sets the admin username and its bcrypt password hash.
func WithAdmin(username, passwordHash string) Option {
	return func(a *Authenticator) {
		a.username = strings.TrimSpace(username)
		a.passwordHash = []byte(strings.TrimSpace(passwordHash))
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an Authenticator signing with secret.
func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("auth")
	}
	return a
}

// Login checks the admin credentials and returns a signed token with its expiry.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if a.username == "" || len(a.passwordHash) == 0 || len(a.secret) == 0 {
		metrics.RecordLoginAttempt("disabled")
		return "", time.Time{}, ErrNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	// Always run bcrypt so timing does not reveal whether the username matched.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		metrics.RecordLoginAttempt("rejected")
		a.log.Warn(ctx, "admin login rejected", logger.String("username", username))
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expires, err := a.Issue(a.username)
	if err != nil {
		metrics.RecordLoginAttempt("error")
		return "", time.Time{}, err
	}
	metrics.RecordLoginAttempt("ok")
	a.log.Info(ctx, "admin logged in", logger.String("username", a.username))
	return token, expires, nil
}

// Issue signs an admin token for subject.
func (a *Authenticator) Issue(subject string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: RoleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token and returns its claims.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrNotConfigured
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAuthorized reports whether credential is a valid admin token. The
// credential may carry a "Bearer " prefix.
func (a *Authenticator) IsAuthorized(ctx context.Context, credential string) bool {
	token := BearerToken(credential)
	if token == "" {
		return false
	}
	claims, err := a.Verify(token)
	if err != nil {
		a.log.Debug(ctx, "credential rejected", logger.Error(err))
		return false
	}
	return claims.Role == RoleAdmin
}

// BearerToken strips an optional "Bearer " scheme from an Authorization value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// HashPassword returns the bcrypt hash stored as admin_password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
