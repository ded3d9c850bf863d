package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/repository"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	b := NewSessionBinder(store, "secret", time.Hour)

	ident, err := store.Create(ctx, domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	token, err := b.Serialize(ident)
	require.NoError(t, err)

	got := b.Deserialize(ctx, token)
	require.NotNil(t, got)
	assert.Equal(t, ident.ID, got.ID)
}

func TestDeserializeFailsSoft(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	b := NewSessionBinder(store, "secret", time.Hour)

	ghost, err := b.Serialize(&domain.Identity{ID: "deleted"})
	require.NoError(t, err)

	other := NewSessionBinder(store, "other-secret", time.Hour)
	ident, err := store.Create(ctx, domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)
	foreign, err := other.Serialize(ident)
	require.NoError(t, err)

	expired, err := NewSessionBinder(store, "secret", -time.Minute).Serialize(ident)
	require.NoError(t, err)

	state, _, err := b.IssueState(domain.ProviderGitHub, "")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": ident.ID, "type": "session"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":            "",
		"garbage":          "not.a.jwt",
		"deleted identity": ghost,
		"wrong secret":     foreign,
		"expired":          expired,
		"state token":      state,
		"alg none":         unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, b.Deserialize(ctx, token))
		})
	}

	_, err = b.Serialize(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestState(t *testing.T) {
	b := NewSessionBinder(repository.NewMemoryStore(), "secret", time.Hour)

	state, nonce, err := b.IssueState(domain.ProviderGitHub, "")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	returnTo, err := b.VerifyState(state, nonce, domain.ProviderGitHub)
	assert.NoError(t, err)
	assert.Empty(t, returnTo)

	for name, check := range map[string]func() error{
		"other provider": func() error { _, err := b.VerifyState(state, nonce, domain.ProviderGoogle); return err },
		"other nonce":    func() error { _, err := b.VerifyState(state, "other", domain.ProviderGitHub); return err },
		"missing nonce":  func() error { _, err := b.VerifyState(state, "", domain.ProviderGitHub); return err },
		"garbage state":  func() error { _, err := b.VerifyState("junk", nonce, domain.ProviderGitHub); return err },
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, check(), domain.ErrUnauthorized)
		})
	}
}

func TestStateReturnTo(t *testing.T) {
	b := NewSessionBinder(repository.NewMemoryStore(), "secret", time.Hour)

	state, nonce, err := b.IssueState(domain.ProviderSteam, "/api/steam")
	require.NoError(t, err)
	returnTo, err := b.VerifyState(state, nonce, domain.ProviderSteam)
	require.NoError(t, err)
	assert.Equal(t, "/api/steam", returnTo)

	for _, target := range []string{"https://evil.example.com/", "//evil.example.com", "/\\evil.example.com", "api/steam"} {
		_, _, err := b.IssueState(domain.ProviderSteam, target)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, target)
	}
}
