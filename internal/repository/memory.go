package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/federation/internal/domain"
)

type providerKey struct {
	kind    domain.ProviderKind
	subject string
}

// MemoryStore keeps identities in process memory. A single mutex guards every
// check-and-insert, which gives it the same uniqueness guarantees as SQLStore.
// Returned identities are copies.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]*domain.Identity
	byEmail    map[string]string
	byProvider map[providerKey]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]*domain.Identity),
		byEmail:    make(map[string]string),
		byProvider: make(map[providerKey]string),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.get(id)
}

func (s *MemoryStore) FindByProviderID(_ context.Context, kind domain.ProviderKind, subject string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byProvider[providerKey{kind, subject}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.get(id)
}

func (s *MemoryStore) CredentialFor(_ context.Context, email string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return "", "", domain.ErrNotFound
	}
	return id, s.identities[id].Credential, nil
}

func (s *MemoryStore) Create(_ context.Context, draft domain.Identity) (*domain.Identity, error) {
	if strings.TrimSpace(draft.Email) == "" {
		return nil, fmt.Errorf("create identity: %w: email is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ident := draft.Clone()
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	if _, taken := s.identities[ident.ID]; taken {
		return nil, fmt.Errorf("create identity: %w: id %s", domain.ErrConflict, ident.ID)
	}
	if err := s.checkUnique(ident); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	now := time.Now().UTC()
	ident.CreatedAt = now
	ident.UpdatedAt = now
	s.put(ident)
	return ident.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*domain.Identity) error) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if strings.TrimSpace(next.Email) == "" {
		return nil, fmt.Errorf("update identity: %w: email is required", domain.ErrInvalidInput)
	}
	next.ID = id
	next.CreatedAt = current.CreatedAt
	if err := s.checkUnique(next); err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}

	s.remove(current)
	next.UpdatedAt = time.Now().UTC()
	s.put(next)
	return next.Clone(), nil
}

// checkUnique reports whether ident's email or provider ids belong to a
// different identity. Caller must hold mu.
func (s *MemoryStore) checkUnique(ident *domain.Identity) error {
	if owner, ok := s.byEmail[domain.NormalizeEmail(ident.Email)]; ok && owner != ident.ID {
		return domain.ErrDuplicateEmail
	}
	for kind, subject := range ident.ProviderIDs {
		if subject == "" {
			continue
		}
		if owner, ok := s.byProvider[providerKey{kind, subject}]; ok && owner != ident.ID {
			return domain.ErrDuplicateProviderID
		}
	}
	return nil
}

func (s *MemoryStore) get(id string) (*domain.Identity, error) {
	ident, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ident.Clone(), nil
}

func (s *MemoryStore) put(ident *domain.Identity) {
	s.identities[ident.ID] = ident
	s.byEmail[domain.NormalizeEmail(ident.Email)] = ident.ID
	for kind, subject := range ident.ProviderIDs {
		if subject != "" {
			s.byProvider[providerKey{kind, subject}] = ident.ID
		}
	}
}

func (s *MemoryStore) remove(ident *domain.Identity) {
	delete(s.identities, ident.ID)
	delete(s.byEmail, domain.NormalizeEmail(ident.Email))
	for kind, subject := range ident.ProviderIDs {
		delete(s.byProvider, providerKey{kind, subject})
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op; the data lives as long as the process.
func (s *MemoryStore) Close() error { return nil }
