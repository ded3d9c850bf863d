package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/federation/internal/domain"
)

func newSteamServer(t *testing.T, handler http.HandlerFunc) *SteamNormalizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	n := NewSteamNormalizer("key-1", srv.Client(), time.Second)
	n.BaseURL = srv.URL
	return n
}

func TestSteamNormalizer(t *testing.T) {
	n := newSteamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		assert.Equal(t, "76561197960435530", r.URL.Query().Get("steamids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": {"players": [{"steamid": "76561197960435530", "personaname": "Gabe", "avatarmedium": "https://avatar", "profileurl": "https://steamcommunity.com/id/gabe/"}]}}`))
	})

	got, err := n.Normalize(context.Background(), AssertionPayload("https://steamcommunity.com/openid/id/76561197960435530"))
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderProfile{
		Kind:        domain.ProviderSteam,
		SubjectID:   "76561197960435530",
		Email:       "76561197960435530@steam.com",
		DisplayName: "Gabe",
		Picture:     "https://avatar",
		Website:     "https://steamcommunity.com/id/gabe/",
	}, got)
}

func TestSteamNormalizerTimeout(t *testing.T) {
	release := make(chan struct{})
	n := newSteamServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	n.Timeout = 20 * time.Millisecond

	_, err := n.Normalize(context.Background(), AssertionPayload("https://steamcommunity.com/openid/id/1"))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestSteamNormalizerErrors(t *testing.T) {
	t.Run("upstream error status", func(t *testing.T) {
		n := newSteamServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := n.Normalize(context.Background(), AssertionPayload("https://steamcommunity.com/openid/id/1"))
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})

	t.Run("no players", func(t *testing.T) {
		n := newSteamServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response": {"players": []}}`))
		})
		_, err := n.Normalize(context.Background(), AssertionPayload("https://steamcommunity.com/openid/id/1"))
		assert.ErrorIs(t, err, domain.ErrMalformedProfile)
	})

	t.Run("claimed id without number", func(t *testing.T) {
		n := newSteamServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := n.Normalize(context.Background(), AssertionPayload("https://steamcommunity.com/openid/id/"))
		assert.ErrorIs(t, err, domain.ErrMalformedProfile)
	})
}
