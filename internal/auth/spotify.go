// Package auth implements the Spotify authorization-code flow. Tokens are
// handed back to the frontend and travel with each generation request;
// nothing is stored server-side.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
)

var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

var scopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-email",
}

type SpotifyAuth struct {
	oauth *oauth2.Config
}

func NewSpotifyAuth(cfg config.SpotifyConfig) *SpotifyAuth {
	return &SpotifyAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     spotifyEndpoint,
		},
	}
}

// Configured reports whether client credentials are present.
func (a *SpotifyAuth) Configured() bool {
	return a.oauth.ClientID != "" && a.oauth.ClientSecret != ""
}

// AuthURL builds the consent page URL for the given CSRF state.
func (a *SpotifyAuth) AuthURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (a *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// Refresh obtains a fresh access token from a refresh token.
func (a *SpotifyAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok, nil
}
