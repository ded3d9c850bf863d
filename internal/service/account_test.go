package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/repository"
)

func TestAccountUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewAccountService(store)

	ident, err := store.Create(ctx, domain.Identity{
		Email:   "a@x.com",
		Profile: domain.Profile{Name: "Alice", Location: "Paris"},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, ident.ID, domain.Profile{Name: "Alice Smith"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{Name: "Alice Smith"}, updated.Profile)

	got, err := svc.Get(ctx, ident.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.Profile.Name)
	assert.Empty(t, got.Profile.Location)

	_, err = svc.UpdateProfile(ctx, "missing", domain.Profile{}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountUpdateProfileWithEmail(t *testing.T) {
	for name, newStore := range map[string]func(t *testing.T) IdentityStore{
		"memory": func(*testing.T) IdentityStore { return repository.NewMemoryStore() },
		"sqlite": newSQLiteStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			svc := NewAccountService(store)

			a, err := store.Create(ctx, domain.Identity{Email: "a@x.com", Profile: domain.Profile{Name: "Old"}})
			require.NoError(t, err)
			_, err = store.Create(ctx, domain.Identity{Email: "taken@x.com"})
			require.NoError(t, err)

			_, err = svc.UpdateProfile(ctx, a.ID, domain.Profile{Name: "New"}, "Taken@x.com")
			assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
			got, err := svc.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, "Old", got.Profile.Name)
			assert.Equal(t, "a@x.com", got.Email)

			updated, err := svc.UpdateProfile(ctx, a.ID, domain.Profile{Name: "New"}, "Fresh@x.com")
			require.NoError(t, err)
			assert.Equal(t, "New", updated.Profile.Name)
			assert.Equal(t, "fresh@x.com", updated.Email)
		})
	}
}

func newSQLiteStore(t *testing.T) IdentityStore {
	t.Helper()
	s, err := repository.OpenStore(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
