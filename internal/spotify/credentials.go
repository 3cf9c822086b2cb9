package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/nowplaying-aggregator/internal/logging"
	"github.com/i474232898/nowplaying-aggregator/internal/status"
	"github.com/i474232898/nowplaying-aggregator/internal/store"
)

const defaultTokenURL = "https://accounts.spotify.com/api/token"

// maxBodyBytes bounds how much of an upstream response body is read.
const maxBodyBytes = 1 << 20

// ClientCredentials are the long-lived inputs of the refresh-token exchange.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c ClientCredentials) missing() []string {
	var miss []string
	if c.ClientID == "" {
		miss = append(miss, "SPOTIFY_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		miss = append(miss, "SPOTIFY_CLIENT_SECRET")
	}
	if c.RefreshToken == "" {
		miss = append(miss, "SPOTIFY_REFRESH_TOKEN")
	}
	return miss
}

// CredentialManager obtains access tokens and persists them through the file store.
type CredentialManager struct {
	client   *http.Client
	creds    ClientCredentials
	tokenURL string
	cache    *store.FileStore
	tracker  *status.Tracker
}

func NewCredentialManager(client *http.Client, creds ClientCredentials, cache *store.FileStore, tracker *status.Tracker) *CredentialManager {
	return &CredentialManager{
		client:   client,
		creds:    creds,
		tokenURL: defaultTokenURL,
		cache:    cache,
		tracker:  tracker,
	}
}

// Refresh exchanges the refresh token for a new access token. It does not
// persist the result.
func (m *CredentialManager) Refresh(ctx context.Context) (AccessToken, error) {
	if miss := m.creds.missing(); len(miss) > 0 {
		m.tracker.RecordRefresh(0, false)
		return AccessToken{}, &ConfigurationError{Missing: miss}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		m.tracker.RecordRefresh(0, false)
		return AccessToken{}, fmt.Errorf("%w: token exchange: %v", ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	m.tracker.RecordRefresh(resp.StatusCode, resp.StatusCode == http.StatusOK)
	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: read token response: %v", ErrTransientFetch, err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return AccessToken{}, fmt.Errorf("%w: decode token response: %v", ErrTransientFetch, err)
	}
	if payload.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("%w: token response without access_token", ErrTransientFetch)
	}

	logging.Info().Msg("spotify: access token refreshed")
	return AccessToken{Token: payload.AccessToken}, nil
}

// Persist writes the token through the file store.
func (m *CredentialManager) Persist(tok AccessToken) error {
	return m.cache.Write(TokenKey, tok)
}

// RefreshAndStore refreshes and persists the token.
func (m *CredentialManager) RefreshAndStore(ctx context.Context) (AccessToken, error) {
	tok, err := m.Refresh(ctx)
	if err != nil {
		return AccessToken{}, err
	}
	if err := m.Persist(tok); err != nil {
		return AccessToken{}, err
	}
	return tok, nil
}

// EnsureInitialLoad returns the persisted token, refreshing and persisting
// one first when none is stored.
func (m *CredentialManager) EnsureInitialLoad(ctx context.Context) (AccessToken, error) {
	if tok := store.Read(m.cache, TokenKey, AccessToken{}); tok.Token != "" {
		return tok, nil
	}
	return m.RefreshAndStore(ctx)
}

// HasTokenFile reports whether a token document exists on disk.
func (m *CredentialManager) HasTokenFile() bool {
	return m.cache.Exists(TokenKey)
}
