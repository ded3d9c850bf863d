package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/sumire/federation/internal/domain"
)

// DefaultSteamAPIURL is the Steam Web API root.
const DefaultSteamAPIURL = "https://api.steampowered.com"

var steamIDPattern = regexp.MustCompile(`(\d+)$`)

// SteamNormalizer resolves a Steam OpenID assertion into a profile. Steam's
// OpenID response carries only the numeric id, so the rest of the profile is
// fetched from GetPlayerSummaries.
type SteamNormalizer struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// NewSteamNormalizer creates a SteamNormalizer against the public Web API.
func NewSteamNormalizer(apiKey string, client *http.Client, timeout time.Duration) *SteamNormalizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &SteamNormalizer{
		APIKey:  apiKey,
		BaseURL: DefaultSteamAPIURL,
		Client:  client,
		Timeout: timeout,
	}
}

type steamAssertion struct {
	ClaimedID string `json:"claimed_id"`
}

type steamPlayerSummaries struct {
	Response struct {
		Players []struct {
			SteamID      string `json:"steamid"`
			PersonaName  string `json:"personaname"`
			AvatarMedium string `json:"avatarmedium"`
			ProfileURL   string `json:"profileurl"`
		} `json:"players"`
	} `json:"response"`
}

// Normalize expects {"claimed_id": "https://steamcommunity.com/openid/id/<steamid>"}.
func (n *SteamNormalizer) Normalize(ctx context.Context, payload []byte) (domain.ProviderProfile, error) {
	var a steamAssertion
	if err := decode(domain.ProviderSteam, payload, &a); err != nil {
		return domain.ProviderProfile{}, err
	}
	m := steamIDPattern.FindStringSubmatch(a.ClaimedID)
	if m == nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: steam: claimed id %q has no numeric id", domain.ErrMalformedProfile, a.ClaimedID)
	}
	steamID := m[1]

	summaries, err := n.fetchSummaries(ctx, steamID)
	if err != nil {
		return domain.ProviderProfile{}, err
	}
	if len(summaries.Response.Players) == 0 {
		return domain.ProviderProfile{}, fmt.Errorf("%w: steam: no player summary for %s", domain.ErrMalformedProfile, steamID)
	}
	player := summaries.Response.Players[0]

	return finish(domain.ProviderProfile{
		Kind:        domain.ProviderSteam,
		SubjectID:   steamID,
		Email:       placeholderEmail(steamID, domain.ProviderSteam),
		DisplayName: player.PersonaName,
		Picture:     player.AvatarMedium,
		Website:     player.ProfileURL,
	})
}

func (n *SteamNormalizer) fetchSummaries(ctx context.Context, steamID string) (*steamPlayerSummaries, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("key", n.APIKey)
	q.Set("steamids", steamID)
	endpoint := n.BaseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: steam: player summaries timed out", domain.ErrProviderUnavailable)
		}
		return nil, fmt.Errorf("%w: steam: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: steam: player summaries returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var out steamPlayerSummaries
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: steam: decode player summaries: %v", domain.ErrProviderUnavailable, err)
	}
	return &out, nil
}
