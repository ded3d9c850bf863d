package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/sumire/federation/internal/domain"
)

const maxProfileBytes = 1 << 20

// OAuth2Transport runs the authorization-code handshake for OAuth2 entries
// and fetches the provider's profile document.
type OAuth2Transport struct {
	client          *http.Client
	githubEmailsURL string
}

// NewOAuth2Transport creates a transport. A nil client means http.DefaultClient.
func NewOAuth2Transport(client *http.Client) *OAuth2Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &OAuth2Transport{client: client, githubEmailsURL: githubEmailsURL}
}

// AuthCodeURL returns the provider consent URL for e.
func (t *OAuth2Transport) AuthCodeURL(e Entry, state string) (string, error) {
	if e.OAuth2 == nil {
		return "", fmt.Errorf("%w: %s has no oauth2 configuration", domain.ErrUnknownProvider, e.Kind)
	}
	return e.OAuth2.AuthCodeURL(state), nil
}

// Complete exchanges code for a token and, unless e is API-only, fetches the
// profile document.
func (t *OAuth2Transport) Complete(ctx context.Context, e Entry, code string) (Callback, error) {
	if e.OAuth2 == nil {
		return Callback{}, fmt.Errorf("%w: %s has no oauth2 configuration", domain.ErrUnknownProvider, e.Kind)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)
	token, err := e.OAuth2.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return Callback{}, fmt.Errorf("%w: %s token exchange: %v", domain.ErrUnauthorized, e.Kind, err)
		}
		return Callback{}, fmt.Errorf("%w: %s token exchange: %v", domain.ErrProviderUnavailable, e.Kind, err)
	}

	cb := Callback{
		Kind: e.Kind,
		Token: domain.Token{
			Kind:         e.Kind,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		},
	}
	if e.APIOnly {
		return cb, nil
	}

	payload, err := t.fetch(ctx, e.Kind, e.ProfileURL, token.AccessToken)
	if err != nil {
		return Callback{}, err
	}

	if e.Kind == domain.ProviderGitHub {
		payload, err = t.withGitHubEmail(ctx, payload, token.AccessToken)
		if err != nil {
			return Callback{}, err
		}
	}

	cb.Payload = payload
	return cb, nil
}

func (t *OAuth2Transport) fetch(ctx context.Context, kind domain.ProviderKind, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s profile: %v", domain.ErrProviderUnavailable, kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s profile returned status %d", domain.ErrProviderUnavailable, kind, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s profile: %v", domain.ErrProviderUnavailable, kind, err)
	}
	return body, nil
}

const githubEmailsURL = "https://api.github.com/user/emails"

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// withGitHubEmail fills in the primary address when the public profile hides it.
func (t *OAuth2Transport) withGitHubEmail(ctx context.Context, payload []byte, accessToken string) ([]byte, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: github: %v", domain.ErrMalformedProfile, err)
	}
	if email, _ := doc["email"].(string); email != "" {
		return payload, nil
	}

	body, err := t.fetch(ctx, domain.ProviderGitHub, t.githubEmailsURL, accessToken)
	if err != nil {
		return nil, err
	}
	var emails []githubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return nil, fmt.Errorf("%w: github emails: %v", domain.ErrProviderUnavailable, err)
	}

	email := ""
	for _, e := range emails {
		if e.Primary {
			email = e.Email
			break
		}
	}
	if email == "" && len(emails) > 0 {
		email = emails[0].Email
	}
	if email == "" {
		return payload, nil
	}

	doc["email"] = email
	return json.Marshal(doc)
}
