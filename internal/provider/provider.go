// Package provider turns identity-provider callbacks into canonical profiles.
//
// A Normalizer only reports facts about the remote account. It never creates,
// links or signs in identities; that is the resolver's job.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sumire/federation/internal/domain"
)

// Normalizer converts a provider-specific profile document into a
// domain.ProviderProfile.
//
// Implementations return an error wrapping domain.ErrMalformedProfile when the
// payload lacks a subject id, and domain.ErrProviderUnavailable when a network
// fetch they depend on fails.
type Normalizer interface {
	Normalize(ctx context.Context, payload []byte) (domain.ProviderProfile, error)
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(ctx context.Context, payload []byte) (domain.ProviderProfile, error)

// Normalize calls f.
func (f NormalizerFunc) Normalize(ctx context.Context, payload []byte) (domain.ProviderProfile, error) {
	return f(ctx, payload)
}

// Callback is what a provider strategy hands to the service layer after a
// completed handshake.
type Callback struct {
	Kind    domain.ProviderKind
	Payload []byte
	Token   domain.Token
}

var validate = validator.New()

func decode(kind domain.ProviderKind, payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: %s: empty payload", domain.ErrMalformedProfile, kind)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedProfile, kind, err)
	}
	return nil
}

// finish validates a profile before it leaves the package.
func finish(p domain.ProviderProfile) (domain.ProviderProfile, error) {
	if err := validate.Struct(p); err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedProfile, p.Kind, err)
	}
	return p, nil
}

// placeholderEmail builds the namespaced address used for providers that do
// not disclose one. handle must be unique within the provider.
func placeholderEmail(handle string, kind domain.ProviderKind) string {
	if handle == "" {
		return ""
	}
	return domain.NormalizeEmail(handle + "@" + string(kind) + ".com")
}
