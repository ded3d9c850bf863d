package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenStore(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	// Migrate is idempotent.
	require.NoError(t, s.(*SQLStore).Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	return s
}

func stores() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": newSQLiteStore,
	}
}

func githubDraft(email, subject string) domain.Identity {
	return domain.Identity{
		Email:       email,
		ProviderIDs: map[domain.ProviderKind]string{domain.ProviderGitHub: subject},
		Tokens:      []domain.Token{{Kind: domain.ProviderGitHub, AccessToken: "at-" + subject}},
		Profile:     domain.Profile{Name: "Octo", Picture: "https://a/1.png"},
	}
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Run("create and find", func(t *testing.T) { testCreateAndFind(t, newStore(t)) })
			t.Run("unique email", func(t *testing.T) { testUniqueEmail(t, newStore(t)) })
			t.Run("unique provider id", func(t *testing.T) { testUniqueProviderID(t, newStore(t)) })
			t.Run("update", func(t *testing.T) { testUpdate(t, newStore(t)) })
			t.Run("update conflicts", func(t *testing.T) { testUpdateConflicts(t, newStore(t)) })
			t.Run("credential", func(t *testing.T) { testCredential(t, newStore(t)) })
			t.Run("concurrent create", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
		})
	}
}

func testCreateAndFind(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, githubDraft("Octo@Example.com", "42"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Octo@Example.com", byID.Email)
	assert.Equal(t, "42", byID.ProviderIDs[domain.ProviderGitHub])
	assert.Equal(t, []domain.Token{{Kind: domain.ProviderGitHub, AccessToken: "at-42"}}, byID.Tokens)
	assert.Equal(t, domain.Profile{Name: "Octo", Picture: "https://a/1.png"}, byID.Profile)

	byEmail, err := s.FindByEmail(ctx, "  octo@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byProvider, err := s.FindByProviderID(ctx, domain.ProviderGitHub, "42")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byProvider.ID)

	_, err = s.FindByProviderID(ctx, domain.ProviderGoogle, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Create(ctx, domain.Identity{Email: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func testUniqueEmail(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, githubDraft("dup@example.com", "1"))
	require.NoError(t, err)

	_, err = s.Create(ctx, githubDraft("DUP@example.com", "2"))
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = s.FindByProviderID(ctx, domain.ProviderGitHub, "2")
	assert.ErrorIs(t, err, domain.ErrNotFound, "failed create must not leave provider links behind")
}

func testUniqueProviderID(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, githubDraft("a@example.com", "7"))
	require.NoError(t, err)

	_, err = s.Create(ctx, githubDraft("b@example.com", "7"))
	assert.ErrorIs(t, err, domain.ErrDuplicateProviderID)

	_, err = s.FindByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound, "failed create must roll back the identity row")
}

func testUpdate(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, githubDraft("u@example.com", "9"))
	require.NoError(t, err)

	updated, err := s.Update(ctx, created.ID, func(i *domain.Identity) error {
		i.ProviderIDs[domain.ProviderGoogle] = "g-9"
		i.Tokens = append(i.Tokens, domain.Token{Kind: domain.ProviderGoogle, AccessToken: "g-at", RefreshToken: "g-rt"})
		i.Profile.Location = "Kyoto"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := s.FindByProviderID(ctx, domain.ProviderGoogle, "g-9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []domain.ProviderKind{domain.ProviderGitHub, domain.ProviderGoogle}, got.LinkedKinds())
	assert.Equal(t, "Kyoto", got.Profile.Location)
	assert.Equal(t, "Octo", got.Profile.Name)

	// Identities handed out are copies.
	got.Tokens = nil
	again, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, again.Tokens, 2)

	_, err = s.Update(ctx, "missing", func(*domain.Identity) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)

	errStop := errors.New("stop")
	_, err = s.Update(ctx, created.ID, func(i *domain.Identity) error {
		i.Profile.Location = "discarded"
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	again, err = s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kyoto", again.Profile.Location)
}

func testUpdateConflicts(t *testing.T, s Store) {
	ctx := context.Background()

	a, err := s.Create(ctx, githubDraft("a@example.com", "100"))
	require.NoError(t, err)
	b, err := s.Create(ctx, githubDraft("b@example.com", "200"))
	require.NoError(t, err)

	_, err = s.Update(ctx, b.ID, func(i *domain.Identity) error {
		i.ProviderIDs[domain.ProviderGitHub] = "100"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateProviderID)

	_, err = s.Update(ctx, b.ID, func(i *domain.Identity) error {
		i.Email = "A@example.com"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	owner, err := s.FindByProviderID(ctx, domain.ProviderGitHub, "100")
	require.NoError(t, err)
	assert.Equal(t, a.ID, owner.ID)
	owner, err = s.FindByProviderID(ctx, domain.ProviderGitHub, "200")
	require.NoError(t, err)
	assert.Equal(t, b.ID, owner.ID)
}

func testCredential(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, domain.Identity{Email: "local@example.com", Credential: "$2a$hash"})
	require.NoError(t, err)

	id, hash, err := s.CredentialFor(ctx, "LOCAL@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)
	assert.Equal(t, "$2a$hash", hash)

	_, _, err = s.CredentialFor(ctx, "other@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentCreate(t *testing.T, s Store) {
	ctx := context.Background()
	const n = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, githubDraft(fmt.Sprintf("racer%d@example.com", i), "same"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrDuplicateProviderID):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close())

	_, err = OpenStore(ctx, "mongo", "mongodb://localhost")
	assert.ErrorContains(t, err, "unsupported store driver")
}
