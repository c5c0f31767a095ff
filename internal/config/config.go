package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Pipeline   PipelineConfig
	RateLimit  RateLimitConfig
	Spotify    SpotifyConfig
	Perplexity PerplexityConfig
	Gemini     GeminiConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	FrontendURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

// PipelineConfig carries the operational tuning for the executor and the
// worker pool. Retry and timeout budgets are configuration, not constants.
type PipelineConfig struct {
	Workers           int
	StageTimeout      time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	EventBuffer       int
	Retention         time.Duration
	SweepInterval     time.Duration
	TargetDurationMin int
}

type RateLimitConfig struct {
	GeneratePerHour int
	NewsPerMin      int
	AskPerMin       int
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
}

type PerplexityConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("SPOTIFY_CLIENT_ID")
	readSecret("SPOTIFY_CLIENT_SECRET")
	readSecret("PPLX_API_KEY")
	readSecret("GEMINI_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.frontend_url", "FRONTEND_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("pipeline.workers", "PIPELINE_WORKERS")
	_ = viper.BindEnv("pipeline.stage_timeout", "PIPELINE_STAGE_TIMEOUT")
	_ = viper.BindEnv("pipeline.max_attempts", "PIPELINE_MAX_ATTEMPTS")
	_ = viper.BindEnv("pipeline.backoff_base", "PIPELINE_BACKOFF_BASE")
	_ = viper.BindEnv("pipeline.backoff_max", "PIPELINE_BACKOFF_MAX")
	_ = viper.BindEnv("pipeline.event_buffer", "PIPELINE_EVENT_BUFFER")
	_ = viper.BindEnv("pipeline.retention", "PIPELINE_RETENTION")
	_ = viper.BindEnv("pipeline.sweep_interval", "PIPELINE_SWEEP_INTERVAL")
	_ = viper.BindEnv("pipeline.target_duration_min", "PIPELINE_TARGET_DURATION_MIN")
	_ = viper.BindEnv("spotify.client_id", "SPOTIFY_CLIENT_ID")
	_ = viper.BindEnv("spotify.client_secret", "SPOTIFY_CLIENT_SECRET")
	_ = viper.BindEnv("spotify.redirect_uri", "SPOTIFY_REDIRECT_URI")
	_ = viper.BindEnv("spotify.base_url", "SPOTIFY_BASE_URL")
	_ = viper.BindEnv("perplexity.api_key", "PPLX_API_KEY")
	_ = viper.BindEnv("perplexity.base_url", "PPLX_BASE_URL")
	_ = viper.BindEnv("perplexity.model", "PPLX_MODEL")
	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.frontend_url", "http://localhost:3000")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.path", "playlists.db")
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.stage_timeout", "2m")
	viper.SetDefault("pipeline.max_attempts", 3)
	viper.SetDefault("pipeline.backoff_base", "500ms")
	viper.SetDefault("pipeline.backoff_max", "30s")
	viper.SetDefault("pipeline.event_buffer", 16)
	viper.SetDefault("pipeline.retention", "24h")
	viper.SetDefault("pipeline.sweep_interval", "10m")
	viper.SetDefault("pipeline.target_duration_min", 60)
	viper.SetDefault("ratelimit.generate_per_hour", 20)
	viper.SetDefault("ratelimit.news_per_min", 30)
	viper.SetDefault("ratelimit.ask_per_min", 30)

	// Spotify defaults
	viper.SetDefault("spotify.redirect_uri", "http://localhost:8000/auth/callback")
	viper.SetDefault("spotify.base_url", "https://api.spotify.com/v1")

	// Perplexity defaults (OpenAI-compatible API)
	viper.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	viper.SetDefault("perplexity.model", "sonar")

	// Gemini defaults
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			LogLevel:    viper.GetString("server.log_level"),
			FrontendURL: viper.GetString("server.frontend_url"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Pipeline: PipelineConfig{
			Workers:           viper.GetInt("pipeline.workers"),
			StageTimeout:      viper.GetDuration("pipeline.stage_timeout"),
			MaxAttempts:       viper.GetInt("pipeline.max_attempts"),
			BackoffBase:       viper.GetDuration("pipeline.backoff_base"),
			BackoffMax:        viper.GetDuration("pipeline.backoff_max"),
			EventBuffer:       viper.GetInt("pipeline.event_buffer"),
			Retention:         viper.GetDuration("pipeline.retention"),
			SweepInterval:     viper.GetDuration("pipeline.sweep_interval"),
			TargetDurationMin: viper.GetInt("pipeline.target_duration_min"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
			NewsPerMin:      viper.GetInt("ratelimit.news_per_min"),
			AskPerMin:       viper.GetInt("ratelimit.ask_per_min"),
		},
		Spotify: SpotifyConfig{
			ClientID:     viper.GetString("spotify.client_id"),
			ClientSecret: viper.GetString("spotify.client_secret"),
			RedirectURI:  viper.GetString("spotify.redirect_uri"),
			BaseURL:      viper.GetString("spotify.base_url"),
		},
		Perplexity: PerplexityConfig{
			APIKey:  viper.GetString("perplexity.api_key"),
			BaseURL: viper.GetString("perplexity.base_url"),
			Model:   viper.GetString("perplexity.model"),
		},
		Gemini: GeminiConfig{
			APIKey:  viper.GetString("gemini.api_key"),
			BaseURL: viper.GetString("gemini.base_url"),
			Model:   viper.GetString("gemini.model"),
		},
	}

	return cfg, nil
}
