package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/cache"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// searchWorkers bounds concurrent track lookups within one job.
const searchWorkers = 8

// mockTrackDurationMS stands in for real track lengths on the mock path.
const mockTrackDurationMS = 210_000

// MaterializeStage resolves curated songs against the playlist platform,
// creates the playlist on the caller's account when a user token is
// present, and fills toward the requested duration with recommendations.
type MaterializeStage struct {
	spotify           *client.SpotifyClient
	cache             *cache.Cache
	targetDurationMin int
}

func NewMaterializeStage(spotify *client.SpotifyClient, c *cache.Cache, targetDurationMin int) *MaterializeStage {
	if targetDurationMin <= 0 {
		targetDurationMin = 60
	}
	return &MaterializeStage{spotify: spotify, cache: c, targetDurationMin: targetDurationMin}
}

func (s *MaterializeStage) Name() string { return "materialize" }

func (s *MaterializeStage) Run(ctx context.Context, st *State, report ReportFunc) error {
	report("Building your playlist...")

	if s.spotify == nil || !s.spotify.IsConfigured() {
		st.Result = s.mockResult(st)
		return nil
	}

	token, err := s.spotify.ResolveToken(ctx, st.Request.SpotifyToken)
	if err != nil {
		return err
	}

	tracks := s.searchTracks(ctx, token, st.Songs)
	if len(tracks) == 0 {
		return model.Permanent(fmt.Errorf("no tracks found on spotify"))
	}

	// Playlist creation needs the caller's account; without a user token
	// the job still completes with the resolved track list.
	var ref *client.PlaylistRef
	if st.Request.SpotifyToken != "" {
		ref, err = s.createAndFill(ctx, token, st.Title, tracks)
		if err != nil {
			return err
		}
	}

	target := st.Request.DurationMinutes
	if target <= 0 {
		target = s.targetDurationMin
	}
	tracks = s.fillToDuration(ctx, token, ref, tracks, target)

	totalMS := 0
	for _, t := range tracks {
		totalMS += t.DurationMS
	}

	result := &model.PlaylistResult{
		PlaylistTitle:   st.Title,
		Description:     st.Request.Description,
		TrackCount:      len(tracks),
		Tracks:          tracks,
		DurationMinutes: float64(totalMS) / 60000,
		Success:         ref != nil,
	}
	if ref != nil {
		result.PlaylistURL = ref.URL
	}
	st.Result = result
	return nil
}

// searchTracks resolves songs concurrently, preserving curated order.
// Individual lookup failures only cost that song.
func (s *MaterializeStage) searchTracks(ctx context.Context, token string, songs []Song) []model.Track {
	found := make([]*model.Track, len(songs))
	sem := make(chan struct{}, searchWorkers)
	var wg sync.WaitGroup

	for i, song := range songs {
		wg.Add(1)
		go func(i int, song Song) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			query := cache.NormalizeTrackQuery(song.Title, song.Artist)
			if track, ok := s.cache.GetTrack(ctx, query); ok {
				found[i] = track
				return
			}

			track, err := s.spotify.SearchTrack(ctx, token, song.Title, song.Artist)
			if err != nil {
				log.Printf("Track search failed for %s - %s: %v", song.Artist, song.Title, err)
				return
			}
			if track != nil {
				s.cache.SetTrack(ctx, query, track)
				found[i] = track
			}
		}(i, song)
	}
	wg.Wait()

	tracks := make([]model.Track, 0, len(songs))
	for _, t := range found {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	return tracks
}

// createAndFill creates the playlist and adds the resolved tracks.
func (s *MaterializeStage) createAndFill(ctx context.Context, token, title string, tracks []model.Track) (*client.PlaylistRef, error) {
	userID, err := s.spotify.CurrentUserID(ctx, token)
	if err != nil {
		return nil, err
	}
	ref, err := s.spotify.CreatePlaylist(ctx, token, userID, title)
	if err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}
	if err := s.spotify.AddTracks(ctx, token, ref.ID, uris); err != nil {
		return nil, err
	}
	return ref, nil
}

// fillToDuration tops the playlist up with recommendations until it meets
// the duration target. Recommendation failures are non-fatal.
func (s *MaterializeStage) fillToDuration(ctx context.Context, token string, ref *client.PlaylistRef, tracks []model.Track, targetMin int) []model.Track {
	totalMS := 0
	seen := make(map[string]struct{}, len(tracks))
	seeds := make([]string, 0, len(tracks))
	for _, t := range tracks {
		totalMS += t.DurationMS
		seen[t.URI] = struct{}{}
		seeds = append(seeds, t.URI)
	}

	targetMS := targetMin * 60_000
	if totalMS >= targetMS {
		return tracks
	}

	recs, err := s.spotify.Recommendations(ctx, token, seeds, 30)
	if err != nil {
		log.Printf("Recommendations skipped: %v", err)
		return tracks
	}

	var added []model.Track
	for _, rec := range recs {
		if totalMS >= targetMS {
			break
		}
		if _, dup := seen[rec.URI]; dup {
			continue
		}
		seen[rec.URI] = struct{}{}
		added = append(added, rec)
		totalMS += rec.DurationMS
	}

	if len(added) > 0 && ref != nil {
		uris := make([]string, 0, len(added))
		for _, t := range added {
			uris = append(uris, t.URI)
		}
		if err := s.spotify.AddTracks(ctx, token, ref.ID, uris); err != nil {
			log.Printf("Failed to add recommended tracks: %v", err)
		}
	}
	return append(tracks, added...)
}

// mockResult keeps the pipeline usable end to end without platform
// credentials, in the spirit of the development fallbacks elsewhere.
func (s *MaterializeStage) mockResult(st *State) *model.PlaylistResult {
	tracks := make([]model.Track, 0, len(st.Songs))
	for i, song := range st.Songs {
		tracks = append(tracks, model.Track{
			Title:      song.Title,
			Artist:     song.Artist,
			URI:        fmt.Sprintf("spotify:track:mock%04d", i),
			DurationMS: mockTrackDurationMS,
		})
	}
	return &model.PlaylistResult{
		PlaylistTitle:   st.Title,
		Description:     st.Request.Description,
		TrackCount:      len(tracks),
		Tracks:          tracks,
		DurationMinutes: float64(len(tracks)*mockTrackDurationMS) / 60000,
		Success:         false,
	}
}
