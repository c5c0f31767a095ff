package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/auth"
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
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize external clients
	perplexityClient := client.NewPerplexityClient(&cfg.Perplexity)
	geminiClient := client.NewGeminiClient(&cfg.Gemini)
	spotifyClient := client.NewSpotifyClient(&cfg.Spotify)

	// Initialize cache (degrades to no-op if Redis is down)
	trackCache := cache.New(redisClient)

	// Initialize history store (optional - continues without persistence)
	var historyDB *history.DB
	if cfg.Database.Path != "" {
		historyDB, err = history.Open(cfg.Database.Path)
		if err != nil {
			log.Printf("Warning: history database not available: %v", err)
			historyDB = nil
		} else {
			defer historyDB.Close()
		}
	}

	// Initialize job store, event hub and pipeline
	jobStore := store.New()
	hub := events.NewHub(cfg.Pipeline.EventBuffer)

	executor := pipeline.NewExecutor(
		cfg.Pipeline,
		jobStore,
		hub,
		historyDB,
		pipeline.NewInterpretStage(perplexityClient),
		pipeline.NewRetrieveStage(perplexityClient),
		pipeline.NewCurateStage(geminiClient),
		pipeline.NewMaterializeStage(spotifyClient, trackCache, cfg.Pipeline.TargetDurationMin),
	)

	orch := orchestrator.New(cfg.Pipeline, jobStore, hub, executor)
	orch.Start()

	// Initialize auth
	spotifyAuth := auth.NewSpotifyAuth(cfg.Spotify)

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(orch, validate)
	streamHandler := handler.NewStreamHandler(orch)
	playlistHandler := handler.NewPlaylistHandler(historyDB)
	newsHandler := handler.NewNewsHandler(perplexityClient, trackCache, validate)
	authHandler := handler.NewAuthHandler(spotifyAuth, cfg.Server.FrontendURL)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"perplexity": perplexityClient.IsConfigured(),
				"gemini":     geminiClient.IsConfigured(),
				"spotify":    spotifyClient.IsConfigured(),
				"redis":      trackCache.Available(c.Context()),
				"history":    historyDB != nil,
			},
			"queueDepth": orch.QueueDepth(),
		})
	})

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	// Auth routes
	app.Get("/auth/login", authHandler.Login)
	app.Get("/auth/callback", authHandler.Callback)
	app.Post("/auth/refresh", authHandler.Refresh)

	// Generation routes
	app.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generateHandler.Generate)
	app.Get("/status/:jobId", generateHandler.Status)
	app.Get("/stream/:jobId", streamHandler.Stream)
	app.Get("/jobs", generateHandler.List)
	app.Post("/jobs/:jobId/cancel", generateHandler.Cancel)
	app.Delete("/jobs/:jobId", generateHandler.Delete)

	// Playlist history routes
	app.Get("/playlists", playlistHandler.List)
	app.Get("/playlists/:playlistId", playlistHandler.Get)
	app.Delete("/playlists/:playlistId", playlistHandler.Delete)
	app.Get("/stats", playlistHandler.Stats)

	// News and Q&A routes
	app.Post("/news", rateLimiter.NewsLimit(cfg.RateLimit.NewsPerMin), newsHandler.News)
	app.Post("/ask", rateLimiter.AskLimit(cfg.RateLimit.AskPerMin), newsHandler.Ask)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		streamHandler.HandleWS(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := orch.Shutdown(shutdownCtx); err != nil {
			log.Printf("Orchestrator shutdown error: %v", err)
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
