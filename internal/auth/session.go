// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie the session token travels in.
const CookieName = "auth_token"

// Sessions signs and verifies EdDSA session tokens.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TTL is the token lifetime. Zero issues tokens without an exp claim.
	TTL time.Duration
}

// NewSessions generates a fresh ed25519 key pair. Tokens do not survive a restart.
func NewSessions(ttl time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, TTL: ttl}, nil
}

// LoadSessions reads raw ed25519 keys from disk.
func LoadSessions(privatePath, publicPath string, ttl time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key sizes")
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		TTL:        ttl,
	}, nil
}

// MaxAge is the cookie max-age matching TTL.
func (s *Sessions) MaxAge() int { return int(s.TTL.Seconds()) }

// CreateJWT creates a signed token with "sub" = profileID.
func (s *Sessions) CreateJWT(profileID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  profileID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.TTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies tokenString and returns the profile id it was issued for.
func (s *Sessions) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile id in token: %w", err)
	}
	return id, nil
}
