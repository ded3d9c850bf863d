package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sumire/federation/internal/domain"
)

const (
	tokenTypeSession = "session"
	tokenTypeState   = "state"
	stateTTL         = 10 * time.Minute
)

// SessionBinder turns identities into signed session tokens and back. The
// token only carries the identity id; the identity itself is reloaded on every
// request so deleted identities fall back to anonymous.
type SessionBinder struct {
	identities IdentityStore
	secret     []byte
	ttl        time.Duration
}

// NewSessionBinder creates a SessionBinder signing with secret.
func NewSessionBinder(identities IdentityStore, secret string, ttl time.Duration) *SessionBinder {
	return &SessionBinder{
		identities: identities,
		secret:     []byte(secret),
		ttl:        ttl,
	}
}

// TTL returns how long issued session tokens stay valid.
func (b *SessionBinder) TTL() time.Duration {
	return b.ttl
}

// Serialize returns a session token for ident.
func (b *SessionBinder) Serialize(ident *domain.Identity) (string, error) {
	if ident == nil || ident.ID == "" {
		return "", fmt.Errorf("%w: identity without id", domain.ErrInvalidInput)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  ident.ID,
		"type": tokenTypeSession,
		"iat":  now.Unix(),
		"exp":  now.Add(b.ttl).Unix(),
	})
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Deserialize returns the identity a session token was issued for, or nil
// when the token is invalid, expired or names an identity that no longer
// exists. It never fails; a nil result means the caller is anonymous.
func (b *SessionBinder) Deserialize(ctx context.Context, tokenString string) *domain.Identity {
	if tokenString == "" {
		return nil
	}
	claims, err := b.parse(tokenString, tokenTypeSession)
	if err != nil {
		slog.Debug("session token rejected", "error", err)
		return nil
	}
	id, _ := claims["sub"].(string)
	if id == "" {
		return nil
	}

	ident, err := b.identities.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("load session identity", "identity_id", id, "error", err)
		}
		return nil
	}
	return ident
}

// IssueState returns an OAuth state value bound to kind and a fresh nonce.
// The nonce is kept by the browser in a cookie and must come back alongside
// the state. returnTo, when not empty, is a local path the browser goes back
// to once the handshake completes.
func (b *SessionBinder) IssueState(kind domain.ProviderKind, returnTo string) (state, nonce string, err error) {
	if returnTo != "" && !IsLocalPath(returnTo) {
		return "", "", fmt.Errorf("%w: return path must be a local path", domain.ErrInvalidInput)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate state nonce: %w", err)
	}
	nonce = base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now()
	claims := jwt.MapClaims{
		"provider": string(kind),
		"nonce":    nonce,
		"type":     tokenTypeState,
		"iat":      now.Unix(),
		"exp":      now.Add(stateTTL).Unix(),
	}
	if returnTo != "" {
		claims["return_to"] = returnTo
	}
	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return state, nonce, nil
}

// VerifyState checks a state value returned by the provider against the
// nonce from the browser and returns the return path it carries.
func (b *SessionBinder) VerifyState(state, nonce string, kind domain.ProviderKind) (string, error) {
	claims, err := b.parse(state, tokenTypeState)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if p, _ := claims["provider"].(string); p != string(kind) {
		return "", fmt.Errorf("%w: state issued for another provider", domain.ErrUnauthorized)
	}
	if n, _ := claims["nonce"].(string); nonce == "" || n != nonce {
		return "", fmt.Errorf("%w: state nonce mismatch", domain.ErrUnauthorized)
	}
	returnTo, _ := claims["return_to"].(string)
	return returnTo, nil
}

// IsLocalPath reports whether p is an absolute path on this origin. Scheme
// relative ("//host") and backslash forms are rejected.
func IsLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

func (b *SessionBinder) parse(tokenString, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	if t, _ := claims["type"].(string); t != wantType {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
