package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sumire/federation/internal/domain"
)

// IdentityStore defines the identity data access interface consumed by the
// services. Create and Update enforce email and provider-id uniqueness
// atomically and report violations as domain.ErrDuplicateEmail and
// domain.ErrDuplicateProviderID.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByProviderID(ctx context.Context, kind domain.ProviderKind, subject string) (*domain.Identity, error)
	CredentialFor(ctx context.Context, email string) (identityID, hash string, err error)
	Create(ctx context.Context, draft domain.Identity) (*domain.Identity, error)
	Update(ctx context.Context, id string, mutate func(*domain.Identity) error) (*domain.Identity, error)
}

var errAlreadyLinked = errors.New("provider already linked to caller")

// Resolver decides what a completed provider login means for the local
// identity namespace: create, link, sign in or refuse.
//
// It keeps no state between calls and relies on the store's unique
// constraints instead of in-process locks, so one Resolver can serve any
// number of concurrent callbacks.
type Resolver struct {
	store IdentityStore
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps a normalized provider profile onto a local identity. Domain
// results, including conflicts, are returned as an Outcome; the error is only
// set when the store itself fails.
func (r *Resolver) Resolve(ctx context.Context, profile domain.ProviderProfile, token domain.Token, sess domain.SessionContext) (domain.Outcome, error) {
	token.Kind = profile.Kind
	if sess.Anonymous() {
		return r.signIn(ctx, profile, token)
	}
	return r.link(ctx, profile, token, sess.CallerIdentityID)
}

func (r *Resolver) link(ctx context.Context, profile domain.ProviderProfile, token domain.Token, callerID string) (domain.Outcome, error) {
	kind := profile.Kind
	out := domain.Outcome{Provider: kind}

	owner, err := r.store.FindByProviderID(ctx, kind, profile.SubjectID)
	switch {
	case err == nil && owner.ID != callerID:
		out.Kind = domain.OutcomeLinkConflict
		return out, nil
	case err == nil:
		out.Kind = domain.OutcomeAlreadyLinked
		out.Identity = owner
		return out, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Outcome{}, fmt.Errorf("find %s identity: %w", kind, err)
	}

	updated, err := r.store.Update(ctx, callerID, func(ident *domain.Identity) error {
		// A concurrent callback may have linked the same subject in between.
		if ident.ProviderIDs[kind] == profile.SubjectID {
			return errAlreadyLinked
		}
		if ident.ProviderIDs == nil {
			ident.ProviderIDs = make(map[domain.ProviderKind]string)
		}
		ident.ProviderIDs[kind] = profile.SubjectID
		ident.Tokens = append(ident.Tokens, token)
		ident.Profile = FallbackFill(ident.Profile, profile.Attributes())
		return nil
	})
	switch {
	case err == nil:
		out.Kind = domain.OutcomeLinked
		out.Identity = updated
		return out, nil
	case errors.Is(err, errAlreadyLinked):
		current, err := r.store.FindByID(ctx, callerID)
		if err != nil {
			return r.lookupFailed(out, err)
		}
		out.Kind = domain.OutcomeAlreadyLinked
		out.Identity = current
		return out, nil
	case errors.Is(err, domain.ErrNotFound):
		out.Kind = domain.OutcomeSessionInvalid
		out.Err = err
		return out, nil
	case errors.Is(err, domain.ErrDuplicateProviderID):
		out.Kind = domain.OutcomeLinkConflict
		out.Err = err
		return out, nil
	default:
		return domain.Outcome{}, fmt.Errorf("link %s: %w", kind, err)
	}
}

func (r *Resolver) signIn(ctx context.Context, profile domain.ProviderProfile, token domain.Token) (domain.Outcome, error) {
	kind := profile.Kind
	out := domain.Outcome{Provider: kind}

	owner, err := r.store.FindByProviderID(ctx, kind, profile.SubjectID)
	switch {
	case err == nil:
		out.Kind = domain.OutcomeSignedIn
		out.Identity = owner
		return out, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Outcome{}, fmt.Errorf("find %s identity: %w", kind, err)
	}

	if profile.Email == "" {
		out.Kind = domain.OutcomeMalformedProfile
		out.Err = fmt.Errorf("%w: %s profile has no email", domain.ErrMalformedProfile, kind)
		return out, nil
	}

	holder, err := r.store.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil && holder.ProviderIDs[kind] == profile.SubjectID:
		// A concurrent first login for this subject committed in between.
		out.Kind = domain.OutcomeSignedIn
		out.Identity = holder
		return out, nil
	case err == nil:
		out.Kind = domain.OutcomeEmailConflict
		return out, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Outcome{}, fmt.Errorf("find identity by email: %w", err)
	}

	created, err := r.store.Create(ctx, domain.Identity{
		Email:       profile.Email,
		ProviderIDs: map[domain.ProviderKind]string{kind: profile.SubjectID},
		Tokens:      []domain.Token{token},
		Profile:     profile.Attributes(),
	})
	switch {
	case err == nil:
		out.Kind = domain.OutcomeCreated
		out.Identity = created
		return out, nil
	case errors.Is(err, domain.ErrDuplicateProviderID), errors.Is(err, domain.ErrDuplicateEmail):
		// A concurrent first login for the same subject may have won; its
		// row trips whichever constraint the store checks first.
		if winner, lookupErr := r.store.FindByProviderID(ctx, kind, profile.SubjectID); lookupErr == nil {
			out.Kind = domain.OutcomeSignedIn
			out.Identity = winner
			return out, nil
		}
		out.Kind = domain.OutcomeRetry
		if errors.Is(err, domain.ErrDuplicateEmail) {
			out.Kind = domain.OutcomeEmailConflict
		}
		out.Err = err
		return out, nil
	default:
		return domain.Outcome{}, fmt.Errorf("create %s identity: %w", kind, err)
	}
}

func (r *Resolver) lookupFailed(out domain.Outcome, err error) (domain.Outcome, error) {
	if errors.Is(err, domain.ErrNotFound) {
		out.Kind = domain.OutcomeSessionInvalid
		out.Err = err
		return out, nil
	}
	return domain.Outcome{}, fmt.Errorf("reload identity: %w", err)
}

// Attach grants an API-only provider token to the signed-in caller. These
// providers carry no profile, so no provider id is recorded and no identity
// can be created or signed into through them. A token of the same kind that
// the caller already holds is replaced.
func (r *Resolver) Attach(ctx context.Context, token domain.Token, sess domain.SessionContext) (domain.Outcome, error) {
	out := domain.Outcome{Provider: token.Kind}
	if sess.Anonymous() {
		return domain.Outcome{}, fmt.Errorf("%w: %s requires a signed-in account", domain.ErrUnauthorized, token.Kind)
	}

	updated, err := r.store.Update(ctx, sess.CallerIdentityID, func(ident *domain.Identity) error {
		for i := range ident.Tokens {
			if ident.Tokens[i].Kind == token.Kind {
				ident.Tokens[i] = token
				return nil
			}
		}
		ident.Tokens = append(ident.Tokens, token)
		return nil
	})
	if err != nil {
		return r.lookupFailed(out, err)
	}
	out.Kind = domain.OutcomeLinked
	out.Identity = updated
	return out, nil
}

// FallbackFill returns existing with every empty attribute taken from
// incoming. Non-empty attributes are never overwritten.
func FallbackFill(existing, incoming domain.Profile) domain.Profile {
	fill := func(cur, next string) string {
		if cur != "" {
			return cur
		}
		return next
	}
	return domain.Profile{
		Name:     fill(existing.Name, incoming.Name),
		Picture:  fill(existing.Picture, incoming.Picture),
		Location: fill(existing.Location, incoming.Location),
		Website:  fill(existing.Website, incoming.Website),
		Gender:   fill(existing.Gender, incoming.Gender),
	}
}
