package provider

import (
	"fmt"
	"slices"

	"golang.org/x/oauth2"

	"github.com/sumire/federation/internal/domain"
)

// Protocol is the handshake family a provider speaks.
type Protocol string

const (
	ProtocolOAuth1 Protocol = "oauth1"
	ProtocolOAuth2 Protocol = "oauth2"
	ProtocolOpenID Protocol = "openid"
)

// Entry binds a provider kind to its normalizer and transport configuration.
//
// APIOnly providers grant API access to an already signed-in identity and
// carry no profile, so they have no Normalizer.
type Entry struct {
	Kind       domain.ProviderKind
	Protocol   Protocol
	Normalizer Normalizer
	APIOnly    bool

	// OAuth2 and ProfileURL are set for OAuth2 providers handled in-process.
	OAuth2     *oauth2.Config
	ProfileURL string

	// OpenID is set for OpenID 2.0 providers handled in-process.
	OpenID *OpenIDVerifier
}

// Registry holds the configured providers. It is built once at startup and
// never mutated, so it is safe to share between request handlers.
type Registry struct {
	entries map[domain.ProviderKind]Entry
}

// NewRegistry registers the given entries by kind. Kinds must be unique and
// every non-API entry needs a Normalizer.
func NewRegistry(entries ...Entry) (*Registry, error) {
	m := make(map[domain.ProviderKind]Entry, len(entries))
	for _, e := range entries {
		if e.Kind == "" {
			return nil, fmt.Errorf("provider entry without kind")
		}
		if _, dup := m[e.Kind]; dup {
			return nil, fmt.Errorf("provider %s registered twice", e.Kind)
		}
		if e.Normalizer == nil && !e.APIOnly {
			return nil, fmt.Errorf("provider %s has no normalizer", e.Kind)
		}
		m[e.Kind] = e
	}
	return &Registry{entries: m}, nil
}

// Get returns the entry for kind or an error wrapping domain.ErrUnknownProvider.
func (r *Registry) Get(kind domain.ProviderKind) (Entry, error) {
	e, ok := r.entries[kind]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, kind)
	}
	return e, nil
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []domain.ProviderKind {
	kinds := make([]domain.ProviderKind, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
