package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/cache"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/events"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/handler"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/history"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/middleware"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/orchestrator"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/pipeline"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/store"
)

// testApp holds all components needed for testing
type testApp struct {
	app  *fiber.App
	orch *orchestrator.Orchestrator
}

// setupApp creates a Fiber app wired like main.go but with unconfigured
// external clients, so every stage runs its deterministic fallback path.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	validate := validator.New()

	// External clients with no API keys take their mock fallbacks.
	perplexityClient := client.NewPerplexityClient(&config.PerplexityConfig{})
	geminiClient := client.NewGeminiClient(&config.GeminiConfig{})
	spotifyClient := client.NewSpotifyClient(&config.SpotifyConfig{})

	trackCache := cache.New(redisClient)

	historyDB, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	t.Cleanup(func() { historyDB.Close() })

	pipeCfg := config.PipelineConfig{
		Workers:           2,
		StageTimeout:      5 * time.Second,
		MaxAttempts:       2,
		BackoffBase:       time.Millisecond,
		BackoffMax:        10 * time.Millisecond,
		EventBuffer:       16,
		TargetDurationMin: 60,
	}

	jobStore := store.New()
	hub := events.NewHub(pipeCfg.EventBuffer)

	executor := pipeline.NewExecutor(
		pipeCfg,
		jobStore,
		hub,
		historyDB,
		pipeline.NewInterpretStage(perplexityClient),
		pipeline.NewRetrieveStage(perplexityClient),
		pipeline.NewCurateStage(geminiClient),
		pipeline.NewMaterializeStage(spotifyClient, trackCache, pipeCfg.TargetDurationMin),
	)

	orch := orchestrator.New(pipeCfg, jobStore, hub, executor)
	orch.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		orch.Shutdown(ctx)
	})

	generateHandler := handler.NewGenerateHandler(orch, validate)
	streamHandler := handler.NewStreamHandler(orch)
	playlistHandler := handler.NewPlaylistHandler(historyDB)
	newsHandler := handler.NewNewsHandler(perplexityClient, trackCache, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"perplexity": false,
				"gemini":     false,
				"spotify":    false,
				"redis":      trackCache.Available(c.Context()),
				"history":    true,
			},
		})
	})

	// Use very high rate limits so tests don't get blocked
	app.Post("/generate", rateLimiter.GenerateLimit(10000), generateHandler.Generate)
	app.Get("/status/:jobId", generateHandler.Status)
	app.Get("/stream/:jobId", streamHandler.Stream)
	app.Get("/jobs", generateHandler.List)
	app.Post("/jobs/:jobId/cancel", generateHandler.Cancel)
	app.Delete("/jobs/:jobId", generateHandler.Delete)

	app.Get("/playlists", playlistHandler.List)
	app.Get("/playlists/:playlistId", playlistHandler.Get)
	app.Delete("/playlists/:playlistId", playlistHandler.Delete)
	app.Get("/stats", playlistHandler.Stats)

	app.Post("/news", rateLimiter.NewsLimit(10000), newsHandler.News)
	app.Post("/ask", rateLimiter.AskLimit(10000), newsHandler.Ask)

	return &testApp{app: app, orch: orch}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// pollUntil polls fn until it returns true or the deadline passes.
func pollUntil(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
