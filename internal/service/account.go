package service

import (
	"context"
	"fmt"

	"github.com/sumire/federation/internal/domain"
)

// AccountService handles edits a signed-in user makes to their own identity.
type AccountService struct {
	identities IdentityStore
}

// NewAccountService creates a new AccountService.
func NewAccountService(identities IdentityStore) *AccountService {
	return &AccountService{identities: identities}
}

// Get retrieves an identity by ID.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	return s.identities.FindByID(ctx, id)
}

// UpdateProfile replaces the display attributes of identity id and, when
// email is not empty, its email. Unlike linking, every field is assigned as
// given, so empty values clear fields. Both changes are written in one store
// update: if the email is taken, nothing changes.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, profile domain.Profile, email string) (*domain.Identity, error) {
	ident, err := s.identities.Update(ctx, id, func(i *domain.Identity) error {
		i.Profile = profile
		if email != "" {
			i.Email = domain.NormalizeEmail(email)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return ident, nil
}
