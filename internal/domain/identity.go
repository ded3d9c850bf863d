package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ProviderKind names an identity provider.
type ProviderKind string

const (
	ProviderGitHub     ProviderKind = "github"
	ProviderGoogle     ProviderKind = "google"
	ProviderFacebook   ProviderKind = "facebook"
	ProviderLinkedIn   ProviderKind = "linkedin"
	ProviderInstagram  ProviderKind = "instagram"
	ProviderTwitter    ProviderKind = "twitter"
	ProviderSteam      ProviderKind = "steam"
	ProviderTumblr     ProviderKind = "tumblr"
	ProviderFoursquare ProviderKind = "foursquare"
	ProviderVenmo      ProviderKind = "venmo"
	ProviderLocal      ProviderKind = "local"
)

// Token is one linked provider session. RefreshToken is only set for OAuth2
// providers that issue one, TokenSecret only for OAuth1 providers.
type Token struct {
	Kind         ProviderKind `json:"kind" db:"kind"`
	AccessToken  string       `json:"access_token" db:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty" db:"refresh_token"`
	TokenSecret  string       `json:"token_secret,omitempty" db:"token_secret"`
}

// Profile holds display attributes. An empty string means the value is unset.
type Profile struct {
	Name     string `json:"name,omitempty" db:"name" validate:"max=200"`
	Picture  string `json:"picture,omitempty" db:"picture" validate:"omitempty,url"`
	Location string `json:"location,omitempty" db:"location" validate:"max=200"`
	Website  string `json:"website,omitempty" db:"website" validate:"omitempty,url"`
	Gender   string `json:"gender,omitempty" db:"gender" validate:"max=50"`
}

// Identity is a local account.
type Identity struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	Credential  string                  `json:"-"`
	ProviderIDs map[ProviderKind]string `json:"provider_ids,omitempty"`
	Tokens      []Token                 `json:"-"`
	Profile     Profile                 `json:"profile"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// HasToken reports whether the identity holds a token for kind.
func (i *Identity) HasToken(kind ProviderKind) bool {
	_, ok := i.TokenFor(kind)
	return ok
}

// TokenFor returns the most recently linked token for kind.
func (i *Identity) TokenFor(kind ProviderKind) (Token, bool) {
	for j := len(i.Tokens) - 1; j >= 0; j-- {
		if i.Tokens[j].Kind == kind {
			return i.Tokens[j], true
		}
	}
	return Token{}, false
}

// LinkedKinds returns the provider kinds the identity has tokens for, in link order.
func (i *Identity) LinkedKinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(i.Tokens))
	for _, t := range i.Tokens {
		if !slices.Contains(kinds, t.Kind) {
			kinds = append(kinds, t.Kind)
		}
	}
	return kinds
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (i *Identity) Clone() *Identity {
	c := *i
	c.ProviderIDs = maps.Clone(i.ProviderIDs)
	c.Tokens = slices.Clone(i.Tokens)
	return &c
}

// NormalizeEmail returns the comparison key used for email uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
