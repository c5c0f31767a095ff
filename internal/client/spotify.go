package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

const spotifyAccountsURL = "https://accounts.spotify.com/api/token"

// addTracksBatchSize is the Web API ceiling for one playlist add call.
const addTracksBatchSize = 100

// SpotifyClient talks to the Spotify Web API. Calls that modify a user's
// library take the caller's bearer token; search falls back to an
// app-level client-credentials token when no user token is given.
type SpotifyClient struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	limiter      *rate.Limiter

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
}

// PlaylistRef identifies a created playlist.
type PlaylistRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewSpotifyClient creates a new Spotify Web API client
func NewSpotifyClient(cfg *config.SpotifyConfig) *SpotifyClient {
	return &SpotifyClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		// Client-side pacing below Spotify's documented limits.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *SpotifyClient) IsConfigured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// ResolveToken returns the token to use for read-only calls: the user's
// token when present, otherwise a cached client-credentials token.
func (c *SpotifyClient) ResolveToken(ctx context.Context, userToken string) (string, error) {
	if userToken != "" {
		return userToken, nil
	}
	return c.appAccessToken(ctx)
}

func (c *SpotifyClient) appAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.appToken != "" && time.Now().Before(c.appTokenExp) {
		token := c.appToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyAccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", model.Permanent(fmt.Errorf("failed to create token request: %w", err))
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.Transient(fmt.Errorf("failed to fetch app token: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.Transient(fmt.Errorf("failed to read token response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, "spotify accounts", body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", model.Permanent(fmt.Errorf("failed to unmarshal token response: %w", err))
	}

	c.mu.Lock()
	c.appToken = tok.AccessToken
	c.appTokenExp = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	c.mu.Unlock()
	return tok.AccessToken, nil
}

// CurrentUserID resolves the id of the account behind a user token.
func (c *SpotifyClient) CurrentUserID(ctx context.Context, token string) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, token, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", model.Permanent(fmt.Errorf("empty user id in response"))
	}
	return user.ID, nil
}

// SearchTrack looks up the best match for a title/artist pair.
func (c *SpotifyClient) SearchTrack(ctx context.Context, token, title, artist string) (*model.Track, error) {
	q := fmt.Sprintf("track:%s artist:%s", title, artist)
	query := url.Values{
		"q":     {q},
		"type":  {"track"},
		"limit": {"1"},
	}

	var result struct {
		Tracks struct {
			Items []spotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := c.doJSON(ctx, token, http.MethodGet, "/search?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}
	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}
	track := result.Tracks.Items[0].toModel()
	return &track, nil
}

// CreatePlaylist creates a public playlist on the user's account.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, token, userID, name string) (*PlaylistRef, error) {
	payload := map[string]interface{}{
		"name":   name,
		"public": true,
	}
	var created struct {
		ID           string `json:"id"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	}
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := c.doJSON(ctx, token, http.MethodPost, path, payload, &created); err != nil {
		return nil, err
	}
	return &PlaylistRef{ID: created.ID, URL: created.ExternalURLs.Spotify}, nil
}

// AddTracks appends track URIs to a playlist in API-sized batches.
func (c *SpotifyClient) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	for i := 0; i < len(uris); i += addTracksBatchSize {
		end := i + addTracksBatchSize
		if end > len(uris) {
			end = len(uris)
		}
		payload := map[string]interface{}{"uris": uris[i:end]}
		path := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
		if err := c.doJSON(ctx, token, http.MethodPost, path, payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// Recommendations returns tracks similar to the seed URIs (at most five
// seeds are used, per the API contract).
func (c *SpotifyClient) Recommendations(ctx context.Context, token string, seedURIs []string, limit int) ([]model.Track, error) {
	ids := make([]string, 0, 5)
	for _, uri := range seedURIs {
		if len(ids) == 5 {
			break
		}
		if id := trackIDFromURI(uri); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := url.Values{
		"seed_tracks": {strings.Join(ids, ",")},
		"limit":       {fmt.Sprintf("%d", limit)},
	}
	var result struct {
		Tracks []spotifyTrack `json:"tracks"`
	}
	if err := c.doJSON(ctx, token, http.MethodGet, "/recommendations?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		tracks = append(tracks, t.toModel())
	}
	return tracks, nil
}

// doJSON performs one paced API call, optionally marshalling a JSON body
// and unmarshalling the response into out.
func (c *SpotifyClient) doJSON(ctx context.Context, token, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Cancelled(err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return model.Permanent(fmt.Errorf("failed to marshal request: %w", err))
		}
		body = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return model.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Transient(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Transient(fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, "spotify", respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return model.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
		}
	}
	return nil
}

// spotifyTrack is the wire shape of a track object.
type spotifyTrack struct {
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
}

func (t spotifyTrack) toModel() model.Track {
	track := model.Track{
		Title:      t.Name,
		URI:        t.URI,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		track.AlbumImage = t.Album.Images[0].URL
	}
	return track
}

func trackIDFromURI(uri string) string {
	idx := strings.LastIndex(uri, ":")
	if idx < 0 || idx == len(uri)-1 {
		return ""
	}
	return uri[idx+1:]
}
