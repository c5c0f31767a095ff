package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// maxCuratedSongs bounds the list handed to materialization; the duration
// fill tops up short playlists afterwards.
const maxCuratedSongs = 50

const defaultPlaylistTitle = "AI Generated Playlist"

// CurateStage extracts a deduplicated song list and a playlist title from
// the retrieval notes, batching both into one model call with a simpler
// extraction fallback.
type CurateStage struct {
	llm *client.GeminiClient
}

func NewCurateStage(llm *client.GeminiClient) *CurateStage {
	return &CurateStage{llm: llm}
}

func (s *CurateStage) Name() string { return "curate" }

func (s *CurateStage) Run(ctx context.Context, st *State, report ReportFunc) error {
	report("Curating and ranking tracks...")

	notes := strings.Join(st.Candidates, "\n\n")

	var songs []Song
	title := defaultPlaylistTitle

	if s.llm == nil || !s.llm.IsConfigured() {
		songs = parseSongLines(notes)
	} else {
		userPrompt := fmt.Sprintf("RESEARCH NOTES:\n%s\n\nUSER REQUEST: %s\nMUSICAL CONTEXT: %s",
			notes, st.Request.Description, clip(st.Context, 200))

		out, err := s.llm.GenerateContent(ctx, "You are a music expert and data extractor. Always answer with valid JSON and no markdown.", curatePrompt+"\n\n"+userPrompt)
		if err != nil {
			return err
		}

		parsed, parseErr := parseCurated(out)
		if parseErr != nil {
			log.Printf("Curate batch parse failed (%v), trying fallback extraction", parseErr)
			out, err = s.llm.GenerateContent(ctx, curateFallbackPrompt, notes)
			if err != nil {
				return err
			}
			songs, parseErr = parseSongArray(out)
			if parseErr != nil {
				return model.Permanent(fmt.Errorf("failed to parse songs from model output: %w", parseErr))
			}
		} else {
			songs = parsed.Songs
			if parsed.Title != "" {
				title = clip(parsed.Title, 50)
			}
		}
	}

	songs = dedupeSongs(songs)
	if len(songs) == 0 {
		return model.Permanent(fmt.Errorf("no songs extracted from research notes"))
	}
	if len(songs) > maxCuratedSongs {
		songs = songs[:maxCuratedSongs]
	}

	st.Songs = songs
	st.Title = title
	return nil
}

type curatedList struct {
	Songs []Song
	Title string
}

// parseCurated decodes the batched {songs, playlist_title} response,
// tolerating markdown fences the model sometimes adds anyway.
func parseCurated(out string) (*curatedList, error) {
	cleaned := stripFences(out)
	var payload struct {
		Songs         []Song `json:"songs"`
		PlaylistTitle string `json:"playlist_title"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}
	if len(payload.Songs) == 0 {
		return nil, fmt.Errorf("no songs in response")
	}
	return &curatedList{Songs: payload.Songs, Title: payload.PlaylistTitle}, nil
}

// parseSongArray decodes the fallback bare-array response.
func parseSongArray(out string) ([]Song, error) {
	cleaned := stripFences(out)
	var songs []Song
	if err := json.Unmarshal([]byte(cleaned), &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// parseSongLines extracts "Artist - Title" lines from plain text. Used for
// the unconfigured-model path where candidates are already line-shaped.
func parseSongLines(text string) []Song {
	var songs []Song
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		artist := strings.TrimSpace(parts[0])
		title := strings.TrimSpace(parts[1])
		if artist == "" || title == "" {
			continue
		}
		songs = append(songs, Song{Artist: artist, Title: title})
	}
	return songs
}

func dedupeSongs(songs []Song) []Song {
	seen := make(map[string]struct{}, len(songs))
	out := songs[:0]
	for _, song := range songs {
		key := strings.ToLower(song.Artist) + "|" + strings.ToLower(song.Title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, song)
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```") {
		s = strings.ReplaceAll(s, "```json", "")
		s = strings.ReplaceAll(s, "```", "")
	}
	// The model occasionally prefixes prose; keep from the first brace or
	// bracket onward.
	if idx := strings.IndexAny(s, "[{"); idx > 0 {
		s = s[idx:]
	}
	return strings.TrimSpace(s)
}

// clip truncates to n characters without splitting a multibyte rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
