// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "mighty"

// ErrNotInitialized is returned when a token is created or checked before Init.
var ErrNotInitialized = errors.New("auth keys not initialized")

// signer holds the process-wide key pair. Keys are regenerated on every Init, so tokens
// do not survive a restart.
var signer struct {
	sync.RWMutex
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	ttl  time.Duration // zero: tokens never expire
}

// sessionClaims are the claims carried by every session token.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Init generates a fresh key pair. expire is "never", "0", "" or a Go duration.
func Init(expire string) error {
	var ttl time.Duration
	switch expire {
	case "", "0", "never":
	default:
		d, err := time.ParseDuration(expire)
		if err != nil {
			return fmt.Errorf("token expiry %q: %w", expire, err)
		}
		ttl = d
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 keys: %w", err)
	}
	signer.Lock()
	signer.pub, signer.priv, signer.ttl = pub, priv, ttl
	signer.Unlock()
	return nil
}

// TokenTTL is the configured token lifetime, zero when tokens never expire.
func TokenTTL() time.Duration {
	signer.RLock()
	defer signer.RUnlock()
	return signer.ttl
}

// CreateJWT signs a session token whose subject is userID.
func CreateJWT(userID string) (string, error) {
	signer.RLock()
	priv, ttl := signer.priv, signer.ttl
	signer.RUnlock()
	if priv == nil {
		return "", ErrNotInitialized
	}

	now := time.Now()
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}

// AuthenticateJWT verifies the token and returns its subject.
func AuthenticateJWT(tokenString string) (string, error) {
	signer.RLock()
	pub := signer.pub
	signer.RUnlock()
	if pub == nil {
		return "", ErrNotInitialized
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// UserIDFromToken authenticates the token and parses its subject as a user id.
func UserIDFromToken(tokenString string) (uuid.UUID, error) {
	sub, err := AuthenticateJWT(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id: %w", err)
	}
	return id, nil
}
