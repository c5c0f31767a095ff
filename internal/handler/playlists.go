package handler

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/history"
	"github.com/angelocurti/Agentic-Playlist-Generator/pkg/response"
)

type PlaylistHandler struct {
	history *history.DB
}

func NewPlaylistHandler(db *history.DB) *PlaylistHandler {
	return &PlaylistHandler{history: db}
}

// List handles GET /playlists
func (h *PlaylistHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	playlists, err := h.history.GetPlaylists(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, "Failed to load playlists")
	}
	if playlists == nil {
		playlists = []history.PlaylistRecord{}
	}
	return response.OK(c, fiber.Map{"playlists": playlists})
}

// Get handles GET /playlists/:playlistId
func (h *PlaylistHandler) Get(c *fiber.Ctx) error {
	id := c.Params("playlistId")
	if id == "" {
		return response.ValidationError(c, "Playlist ID is required", nil)
	}

	detail, err := h.history.GetPlaylist(c.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, "Playlist not found")
		}
		return response.ServiceError(c, "Failed to load playlist")
	}
	return response.OK(c, detail)
}

// Delete handles DELETE /playlists/:playlistId
func (h *PlaylistHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("playlistId")
	if id == "" {
		return response.ValidationError(c, "Playlist ID is required", nil)
	}

	if err := h.history.DeletePlaylist(c.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, "Playlist not found")
		}
		return response.ServiceError(c, "Failed to delete playlist")
	}
	return response.NoContent(c)
}

// Stats handles GET /stats
func (h *PlaylistHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.history.GetStats(c.Context())
	if err != nil {
		return response.ServiceError(c, "Failed to load stats")
	}
	return response.OK(c, stats)
}
