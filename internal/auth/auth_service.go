package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService signs and validates the session tokens carried in the session cookie.
type AuthService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	sessionTTL time.Duration
}

// Identity is the user information embedded in a session token.
type Identity struct {
	UserID   uint
	Username string
	Role     string
}

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService parses PEM encoded RSA keys.
func NewAuthService(privateKeyPEM, publicKeyPEM []byte, sessionTTL time.Duration) (*AuthService, error) {
	if len(privateKeyPEM) == 0 {
		return nil, errors.New("private key pem is required")
	}
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	return &AuthService{
		privateKey: privateKey,
		publicKey:  publicKey,
		sessionTTL: sessionTTL,
	}, nil
}

// NewAuthServiceFromFiles reads the key pair from disk. When both paths are
// empty an ephemeral key is generated, which invalidates sessions on restart.
func NewAuthServiceFromFiles(privateKeyPath, publicKeyPath string, sessionTTL time.Duration) (*AuthService, bool, error) {
	if privateKeyPath == "" && publicKeyPath == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, false, fmt.Errorf("generate ephemeral key: %w", err)
		}
		return NewAuthServiceFromKey(key, sessionTTL), true, nil
	}

	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, false, fmt.Errorf("read private key: %w", err)
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, false, fmt.Errorf("read public key: %w", err)
	}
	svc, err := NewAuthService(privatePEM, publicPEM, sessionTTL)
	return svc, false, err
}

// NewAuthServiceFromKey builds a service around an in-memory key.
func NewAuthServiceFromKey(key *rsa.PrivateKey, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		privateKey: key,
		publicKey:  &key.PublicKey,
		sessionTTL: sessionTTL,
	}
}

// IssueSession creates a signed session token for the identity.
func (s *AuthService) IssueSession(identity Identity) (string, *SessionClaims, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(identity.UserID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses and verifies a session token.
func (s *AuthService) ValidateToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ID == "" {
		return nil, errors.New("token missing jti")
	}

	return claims, nil
}

// SessionTTL exposes the session lifetime.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Identity extracts the identity part of the claims.
func (c *SessionClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Role: c.Role}
}
