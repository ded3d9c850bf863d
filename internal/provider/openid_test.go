package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
)

const testReturnTo = "https://id.example.com/auth/steam/callback"

func assertion(claimedID string) url.Values {
	return url.Values{
		"openid.ns":         {openIDNamespace},
		"openid.mode":       {"id_res"},
		"openid.return_to":  {testReturnTo},
		"openid.claimed_id": {claimedID},
		"openid.identity":   {claimedID},
		"openid.sig":        {"c2ln"},
		"openid.signed":     {"signed,op_endpoint,claimed_id,identity,return_to"},
		"state":             {"ignored"},
	}
}

func newOpenIDServer(t *testing.T, body string) (*OpenIDVerifier, *url.Values) {
	t.Helper()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewOpenIDVerifier(srv.URL, "https://id.example.com/", testReturnTo, srv.Client()), &got
}

func TestOpenIDVerify(t *testing.T) {
	v, sent := newOpenIDServer(t, "ns:http://specs.openid.net/auth/2.0\nis_valid:true\n")

	claimed, err := v.Verify(context.Background(), assertion("https://steamcommunity.com/openid/id/42"))
	require.NoError(t, err)
	assert.Equal(t, "https://steamcommunity.com/openid/id/42", claimed)

	assert.Equal(t, "check_authentication", sent.Get("openid.mode"))
	assert.Equal(t, "c2ln", sent.Get("openid.sig"))
	assert.Empty(t, sent.Get("state"))
}

func TestOpenIDVerifyRejected(t *testing.T) {
	v, _ := newOpenIDServer(t, "ns:http://specs.openid.net/auth/2.0\nis_valid:false\n")

	_, err := v.Verify(context.Background(), assertion("https://steamcommunity.com/openid/id/42"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestOpenIDVerifyLocalChecks(t *testing.T) {
	v, _ := newOpenIDServer(t, "is_valid:true\n")

	cancelled := url.Values{"openid.mode": {"cancel"}}
	_, err := v.Verify(context.Background(), cancelled)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = v.Verify(context.Background(), url.Values{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	foreign := assertion("https://steamcommunity.com/openid/id/42")
	foreign.Set("openid.return_to", "https://evil.example.com/")
	_, err = v.Verify(context.Background(), foreign)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	missing := assertion("")
	_, err = v.Verify(context.Background(), missing)
	assert.ErrorIs(t, err, domain.ErrMalformedProfile)
}

func TestOpenIDVerifyProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	v := NewOpenIDVerifier(srv.URL, "https://id.example.com/", testReturnTo, srv.Client())

	_, err := v.Verify(context.Background(), assertion("https://steamcommunity.com/openid/id/42"))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestOpenIDRedirectURL(t *testing.T) {
	v := NewOpenIDVerifier(SteamOpenIDEndpoint, "https://id.example.com/", testReturnTo, nil)

	u, err := url.Parse(v.RedirectURL(""))
	require.NoError(t, err)
	assert.Equal(t, "steamcommunity.com", u.Host)
	q := u.Query()
	assert.Equal(t, "checkid_setup", q.Get("openid.mode"))
	assert.Equal(t, testReturnTo, q.Get("openid.return_to"))
	assert.Equal(t, openIDIdentifierSpec, q.Get("openid.claimed_id"))
}

func TestOpenIDRedirectURLCarriesState(t *testing.T) {
	v := NewOpenIDVerifier(SteamOpenIDEndpoint, "https://id.example.com/", testReturnTo, nil)

	u, err := url.Parse(v.RedirectURL("s.t.a"))
	require.NoError(t, err)
	returnTo, err := url.Parse(u.Query().Get("openid.return_to"))
	require.NoError(t, err)
	assert.Equal(t, "s.t.a", returnTo.Query().Get("state"))

	params := assertion("https://steamcommunity.com/openid/id/42")
	params.Set("openid.return_to", returnTo.String())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:true\n"))
	}))
	defer srv.Close()
	v = NewOpenIDVerifier(srv.URL, "https://id.example.com/", testReturnTo, srv.Client())
	claimed, err := v.Verify(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "https://steamcommunity.com/openid/id/42", claimed)
}
