// Package auth provides optional JWT bearer authentication with a
// single bcrypt-protected admin user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims carried in the access token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config for the auth manager. With Enabled false every request passes.
type Config struct {
	Enabled       bool
	Secret        string
	AdminUser     string
	AdminPassHash string // bcrypt hash of the admin password
	TokenLifetime time.Duration
}

// Manager signs and validates tokens for the single admin user
type Manager struct {
	cfg Config
}

// NewManager creates an auth manager. A zero token lifetime defaults to
// 24 hours.
func NewManager(cfg Config) *Manager {
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = 24 * time.Hour
	}
	return &Manager{cfg: cfg}
}

// Enabled reports whether authentication is enforced
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// HashPassword bcrypt-hashes a password for storage in config
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Login verifies the admin credentials and returns a signed token
func (m *Manager) Login(username, password string) (string, error) {
	if username != m.cfg.AdminUser {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.cfg.AdminPassHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TokenLifetime)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "options-trading-engine",
		},
	})

	signed, err := token.SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses a bearer token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
