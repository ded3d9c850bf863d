package service

import "github.com/sumire/federation/internal/domain"

// Decision is the result of an authorization check.
type Decision struct {
	Allow bool
	// RedirectTo is the linking flow for the requested provider when Allow is false.
	RedirectTo string
}

// Guard gates provider-backed API routes on the caller holding a token of
// that provider.
type Guard struct{}

// Check allows ident when it holds a token of kind and otherwise sends the
// caller into the linking flow for kind.
func (Guard) Check(ident *domain.Identity, kind domain.ProviderKind) Decision {
	if ident != nil && ident.HasToken(kind) {
		return Decision{Allow: true}
	}
	return Decision{RedirectTo: "/auth/" + string(kind)}
}
