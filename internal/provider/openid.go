package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sumire/federation/internal/domain"
)

// SteamOpenIDEndpoint is Steam's OpenID 2.0 provider endpoint.
const SteamOpenIDEndpoint = "https://steamcommunity.com/openid/login"

const (
	openIDNamespace      = "http://specs.openid.net/auth/2.0"
	openIDIdentifierSpec = "http://specs.openid.net/auth/2.0/identifier_select"
)

// OpenIDVerifier drives an OpenID 2.0 login: it builds the checkid_setup
// redirect and confirms assertions directly with the provider.
type OpenIDVerifier struct {
	Endpoint string
	Realm    string
	ReturnTo string
	client   *http.Client
}

// NewOpenIDVerifier creates a verifier. A nil client means http.DefaultClient.
func NewOpenIDVerifier(endpoint, realm, returnTo string, client *http.Client) *OpenIDVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenIDVerifier{
		Endpoint: endpoint,
		Realm:    realm,
		ReturnTo: returnTo,
		client:   client,
	}
}

// RedirectURL returns the provider login URL. A non-empty state is appended
// to the return URL, so the provider echoes it back on the callback.
func (v *OpenIDVerifier) RedirectURL(state string) string {
	returnTo := v.ReturnTo
	if state != "" {
		returnTo += "?" + url.Values{"state": {state}}.Encode()
	}

	q := url.Values{}
	q.Set("openid.ns", openIDNamespace)
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.return_to", returnTo)
	q.Set("openid.realm", v.Realm)
	q.Set("openid.identity", openIDIdentifierSpec)
	q.Set("openid.claimed_id", openIDIdentifierSpec)
	return v.Endpoint + "?" + q.Encode()
}

// Verify checks the assertion in params with the provider and returns the
// claimed identifier.
func (v *OpenIDVerifier) Verify(ctx context.Context, params url.Values) (string, error) {
	switch mode := params.Get("openid.mode"); mode {
	case "id_res":
	case "cancel":
		return "", fmt.Errorf("%w: openid login cancelled", domain.ErrUnauthorized)
	default:
		return "", fmt.Errorf("%w: unexpected openid.mode %q", domain.ErrInvalidInput, mode)
	}

	if !strings.HasPrefix(params.Get("openid.return_to"), v.ReturnTo) {
		return "", fmt.Errorf("%w: openid return_to mismatch", domain.ErrUnauthorized)
	}

	claimedID := params.Get("openid.claimed_id")
	if claimedID == "" {
		return "", fmt.Errorf("%w: openid assertion without claimed_id", domain.ErrMalformedProfile)
	}

	check := url.Values{}
	for k, vals := range params {
		if strings.HasPrefix(k, "openid.") {
			check[k] = vals
		}
	}
	check.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(check.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openid check_authentication: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: openid check_authentication returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, maxProfileBytes))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "is_valid:true" {
			return claimedID, nil
		}
	}
	return "", fmt.Errorf("%w: openid assertion rejected", domain.ErrUnauthorized)
}

// AssertionPayload encodes a verified claimed id for SteamNormalizer.
func AssertionPayload(claimedID string) []byte {
	b, _ := json.Marshal(steamAssertion{ClaimedID: claimedID})
	return b
}
