package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/auth"
	"github.com/angelocurti/Agentic-Playlist-Generator/pkg/response"
)

const stateCookie = "spotify_auth_state"

type AuthHandler struct {
	auth        *auth.SpotifyAuth
	frontendURL string
}

func NewAuthHandler(a *auth.SpotifyAuth, frontendURL string) *AuthHandler {
	return &AuthHandler{auth: a, frontendURL: frontendURL}
}

// Login handles GET /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if !h.auth.Configured() {
		return response.ServiceError(c, "Spotify credentials are not configured")
	}

	state, err := randomState()
	if err != nil {
		return response.ServiceError(c, "Failed to start login")
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Now().Add(10 * time.Minute),
	})
	return c.Redirect(h.auth.AuthURL(state), fiber.StatusTemporaryRedirect)
}

// Callback handles GET /auth/callback. Tokens are handed to the frontend
// in the redirect query; the server keeps nothing.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	if errParam := c.Query("error"); errParam != "" {
		return c.Redirect(h.frontendURL+"?auth_error="+url.QueryEscape(errParam), fiber.StatusTemporaryRedirect)
	}

	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return response.Unauthorized(c, "State mismatch")
	}
	c.ClearCookie(stateCookie)

	code := c.Query("code")
	if code == "" {
		return response.ValidationError(c, "Authorization code is required", nil)
	}

	tok, err := h.auth.Exchange(c.Context(), code)
	if err != nil {
		return response.Unauthorized(c, "Authorization code exchange failed")
	}

	q := url.Values{}
	q.Set("access_token", tok.AccessToken)
	q.Set("refresh_token", tok.RefreshToken)
	q.Set("expires_at", fmt.Sprintf("%d", tok.Expiry.Unix()))
	return c.Redirect(h.frontendURL+"?"+q.Encode(), fiber.StatusTemporaryRedirect)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return response.ValidationError(c, "Refresh token is required", nil)
	}

	tok, err := h.auth.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Token refresh failed")
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		// Spotify may omit the refresh token on rotation
		refresh = req.RefreshToken
	}
	return response.OK(c, fiber.Map{
		"accessToken":  tok.AccessToken,
		"refreshToken": refresh,
		"expiresAt":    tok.Expiry.Unix(),
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
