package pipeline

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

func testRequest(desc string) model.PlaylistRequest {
	return model.PlaylistRequest{Description: desc}
}

func TestParseCuratedWithFences(t *testing.T) {
	out := "```json\n{\"songs\": [{\"artist\": \"Kavinsky\", \"title\": \"Nightcall\"}], \"playlist_title\": \"Neon Drive\"}\n```"

	parsed, err := parseCurated(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Songs) != 1 || parsed.Songs[0].Artist != "Kavinsky" {
		t.Errorf("wrong songs: %+v", parsed.Songs)
	}
	if parsed.Title != "Neon Drive" {
		t.Errorf("wrong title: %q", parsed.Title)
	}
}

func TestParseCuratedWithLeadingProse(t *testing.T) {
	out := "Here is the playlist you asked for:\n{\"songs\": [{\"artist\": \"A\", \"title\": \"B\"}], \"playlist_title\": \"X\"}"

	parsed, err := parseCurated(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Songs) != 1 {
		t.Errorf("wrong songs: %+v", parsed.Songs)
	}
}

func TestParseCuratedRejectsEmpty(t *testing.T) {
	if _, err := parseCurated(`{"songs": [], "playlist_title": "Empty"}`); err == nil {
		t.Error("expected error for empty song list")
	}
	if _, err := parseCurated("not json at all"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseSongArrayFallback(t *testing.T) {
	out := "```json\n[{\"artist\": \"M83\", \"title\": \"Midnight City\"}, {\"artist\": \"Daft Punk\", \"title\": \"Veridis Quo\"}]\n```"

	songs, err := parseSongArray(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(songs) != 2 || songs[1].Title != "Veridis Quo" {
		t.Errorf("wrong songs: %+v", songs)
	}
}

func TestParseSongLines(t *testing.T) {
	text := strings.Join([]string{
		"[mainstream picks]",
		"Kavinsky - Nightcall",
		"",
		"not a song line",
		"M83 - Midnight City",
		" - missing artist",
	}, "\n")

	songs := parseSongLines(text)
	if len(songs) != 2 {
		t.Fatalf("expected 2 songs, got %d: %+v", len(songs), songs)
	}
	if songs[0].Artist != "Kavinsky" || songs[1].Title != "Midnight City" {
		t.Errorf("wrong parse: %+v", songs)
	}
}

func TestDedupeSongsCaseInsensitive(t *testing.T) {
	songs := dedupeSongs([]Song{
		{Artist: "Kavinsky", Title: "Nightcall"},
		{Artist: "KAVINSKY", Title: "nightcall"},
		{Artist: "M83", Title: "Midnight City"},
	})
	if len(songs) != 2 {
		t.Errorf("expected 2 unique songs, got %d: %+v", len(songs), songs)
	}
}

func TestCurateStageMockPath(t *testing.T) {
	stage := NewCurateStage(nil)
	st := &State{
		Request:    testRequest("late night drive"),
		Candidates: []string{"Kavinsky - Nightcall\nM83 - Midnight City", "Kavinsky - Nightcall"},
	}

	if err := stage.Run(context.Background(), st, func(string) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Songs) != 2 {
		t.Errorf("expected 2 deduped songs, got %d", len(st.Songs))
	}
	if st.Title != defaultPlaylistTitle {
		t.Errorf("expected default title, got %q", st.Title)
	}
}

func TestCurateStageEmptyNotes(t *testing.T) {
	stage := NewCurateStage(nil)
	st := &State{Request: testRequest("anything"), Candidates: nil}

	err := stage.Run(context.Background(), st, func(string) {})
	if err == nil {
		t.Fatal("expected error for empty notes")
	}
}

func TestClipKeepsRuneBoundaries(t *testing.T) {
	title := strings.Repeat("méditation à minuit ", 4)
	got := clip(title, 50)
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 50 {
		t.Errorf("expected 50 runes, got %d", n)
	}

	if got := clip("short", 50); got != "short" {
		t.Errorf("short string changed: %q", got)
	}

	notes := strings.Repeat("🎵", 30)
	if got := clip(notes, 10); got != strings.Repeat("🎵", 10) {
		t.Errorf("multibyte clip wrong: %q", got)
	}
}
