package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/repository"
)

func TestGuardCheck(t *testing.T) {
	ident := &domain.Identity{Tokens: []domain.Token{{Kind: domain.ProviderFoursquare, AccessToken: "f"}}}

	assert.Equal(t, Decision{Allow: true}, Guard{}.Check(ident, domain.ProviderFoursquare))
	assert.Equal(t, Decision{RedirectTo: "/auth/github"}, Guard{}.Check(ident, domain.ProviderGitHub))
	assert.Equal(t, Decision{RedirectTo: "/auth/github"}, Guard{}.Check(nil, domain.ProviderGitHub))
}

func TestGuardAfterLinking(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	u1, err := store.Create(ctx, domain.Identity{Email: "u1@x.com"})
	require.NoError(t, err)

	decision := Guard{}.Check(u1, domain.ProviderGitHub)
	require.False(t, decision.Allow)

	out, err := NewResolver(store).Resolve(ctx, githubProfile("42", ""), githubT, sessionOf(u1.ID))
	require.NoError(t, err)
	assert.True(t, Guard{}.Check(out.Identity, domain.ProviderGitHub).Allow)
}
