package provider

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/foursquare"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/instagram"
	"golang.org/x/oauth2/linkedin"

	"github.com/sumire/federation/internal/domain"
)

// ClientCredentials are the application's credentials at one provider.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// Settings configure DefaultEntries.
type Settings struct {
	// BaseURL is the public origin of this service, used for callback URLs.
	BaseURL      string
	Clients      map[domain.ProviderKind]ClientCredentials
	SteamAPIKey  string
	FetchTimeout time.Duration
	HTTPClient   *http.Client
}

var venmoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://api.venmo.com/v1/oauth/authorize",
	TokenURL: "https://api.venmo.com/v1/oauth/access_token",
}

type oauth2Spec struct {
	kind       domain.ProviderKind
	endpoint   oauth2.Endpoint
	scopes     []string
	profileURL string
	normalize  NormalizerFunc
}

var oauth2Specs = []oauth2Spec{
	{domain.ProviderGitHub, github.Endpoint, []string{"user:email"}, "https://api.github.com/user", NormalizeGitHub},
	{domain.ProviderGoogle, google.Endpoint, []string{"openid", "profile", "email"}, "https://openidconnect.googleapis.com/v1/userinfo", NormalizeGoogle},
	{domain.ProviderFacebook, facebook.Endpoint, []string{"email", "public_profile"}, "https://graph.facebook.com/me?fields=id,name,email,gender,location", NormalizeFacebook},
	{domain.ProviderLinkedIn, linkedin.Endpoint, []string{"r_basicprofile", "r_emailaddress"}, "https://api.linkedin.com/v1/people/~:(id,formatted-name,email-address,location,picture-url,public-profile-url)?format=json", NormalizeLinkedIn},
	{domain.ProviderInstagram, instagram.Endpoint, []string{"basic"}, "https://api.instagram.com/v1/users/self", NormalizeInstagram},
	{domain.ProviderFoursquare, foursquare.Endpoint, nil, "", nil},
	{domain.ProviderVenmo, venmoEndpoint, []string{"access_profile"}, "", nil},
}

// DefaultEntries builds the entries for every provider that has credentials
// in s. Providers without a client id are left out.
func DefaultEntries(s Settings) []Entry {
	base := strings.TrimRight(s.BaseURL, "/")
	callback := func(kind domain.ProviderKind) string {
		return base + "/auth/" + string(kind) + "/callback"
	}

	var entries []Entry
	for _, spec := range oauth2Specs {
		creds, ok := s.Clients[spec.kind]
		if !ok || creds.ClientID == "" {
			continue
		}
		e := Entry{
			Kind:     spec.kind,
			Protocol: ProtocolOAuth2,
			OAuth2: &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				Endpoint:     spec.endpoint,
				Scopes:       spec.scopes,
				RedirectURL:  callback(spec.kind),
			},
			ProfileURL: spec.profileURL,
		}
		if spec.normalize == nil {
			e.APIOnly = true
		} else {
			e.Normalizer = spec.normalize
		}
		entries = append(entries, e)
	}

	// OAuth1 handshakes run in an external strategy that posts the result back.
	if creds, ok := s.Clients[domain.ProviderTwitter]; ok && creds.ClientID != "" {
		entries = append(entries, Entry{
			Kind:       domain.ProviderTwitter,
			Protocol:   ProtocolOAuth1,
			Normalizer: NormalizerFunc(NormalizeTwitter),
		})
	}
	if creds, ok := s.Clients[domain.ProviderTumblr]; ok && creds.ClientID != "" {
		entries = append(entries, Entry{
			Kind:     domain.ProviderTumblr,
			Protocol: ProtocolOAuth1,
			APIOnly:  true,
		})
	}

	if s.SteamAPIKey != "" {
		entries = append(entries, Entry{
			Kind:       domain.ProviderSteam,
			Protocol:   ProtocolOpenID,
			Normalizer: NewSteamNormalizer(s.SteamAPIKey, s.HTTPClient, s.FetchTimeout),
			OpenID:     NewOpenIDVerifier(SteamOpenIDEndpoint, base+"/", callback(domain.ProviderSteam), s.HTTPClient),
		})
	}

	return entries
}
