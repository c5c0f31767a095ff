package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult() *model.PlaylistResult {
	return &model.PlaylistResult{
		PlaylistURL:   "https://open.spotify.com/playlist/abc",
		PlaylistTitle: "Neon Drive",
		Description:   "late night drive",
		TrackCount:    2,
		Tracks: []model.Track{
			{Title: "Nightcall", Artist: "Kavinsky", URI: "spotify:track:1", DurationMS: 258000},
			{Title: "Midnight City", Artist: "M83", URI: "spotify:track:2", DurationMS: 243000},
		},
		DurationMinutes: 8.35,
		GenerationTime:  12.5,
		Success:         true,
	}
}

func TestSaveAndGetPlaylist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.SavePlaylist(ctx, "p1", sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}

	detail, err := db.GetPlaylist(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Title != "Neon Drive" || detail.TrackCount != 2 {
		t.Errorf("wrong playlist: %+v", detail.PlaylistRecord)
	}
	if len(detail.Tracks) != 2 || detail.Tracks[0].Title != "Nightcall" {
		t.Errorf("wrong tracks: %+v", detail.Tracks)
	}
}

func TestSavePlaylistReplaces(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.SavePlaylist(ctx, "p1", sampleResult())

	updated := sampleResult()
	updated.PlaylistTitle = "Neon Drive v2"
	updated.Tracks = updated.Tracks[:1]
	updated.TrackCount = 1
	if err := db.SavePlaylist(ctx, "p1", updated); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	detail, _ := db.GetPlaylist(ctx, "p1")
	if detail.Title != "Neon Drive v2" || len(detail.Tracks) != 1 {
		t.Errorf("replace did not take: %+v", detail)
	}
}

func TestGetPlaylistsOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.SavePlaylist(ctx, "p1", sampleResult())
	db.SavePlaylist(ctx, "p2", sampleResult())

	playlists, err := db.GetPlaylists(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(playlists))
	}
}

func TestDeletePlaylist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.SavePlaylist(ctx, "p1", sampleResult())
	if err := db.DeletePlaylist(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetPlaylist(ctx, "p1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
	if err := db.DeletePlaylist(ctx, "p1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows on second delete, got %v", err)
	}
}

func TestSaveTaskUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	rec := TaskRecord{
		ID:          "t1",
		Status:      "processing",
		Description: "late night drive",
		Progress:    "Searching over millions of sources...",
	}
	if err := db.SaveTask(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec.Status = "completed"
	rec.Progress = "Done in 12s!"
	rec.Result = sampleResult()
	rec.CompletedAt = time.Now()
	if err := db.SaveTask(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	empty, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.TotalPlaylists != 0 {
		t.Errorf("expected empty stats, got %+v", empty)
	}

	db.SavePlaylist(ctx, "p1", sampleResult())
	db.SavePlaylist(ctx, "p2", sampleResult())

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalPlaylists != 2 || stats.TotalTracks != 4 {
		t.Errorf("wrong aggregates: %+v", stats)
	}
	if stats.AvgGenerationTime != 12.5 {
		t.Errorf("wrong avg generation time: %f", stats.AvgGenerationTime)
	}
}

func TestNilDBIsNoOp(t *testing.T) {
	ctx := context.Background()
	var db *DB

	if err := db.SavePlaylist(ctx, "p1", sampleResult()); err != nil {
		t.Errorf("nil save errored: %v", err)
	}
	if err := db.SaveTask(ctx, TaskRecord{ID: "t1"}); err != nil {
		t.Errorf("nil save task errored: %v", err)
	}
	if _, err := db.GetPlaylist(ctx, "p1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows from nil db, got %v", err)
	}
	stats, err := db.GetStats(ctx)
	if err != nil || stats == nil {
		t.Errorf("nil stats: %+v, %v", stats, err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("nil close errored: %v", err)
	}
}
