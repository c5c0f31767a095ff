package model

import "time"

// Job represents one playlist-generation request and its tracked lifecycle.
// Mutable fields are written only by the executor that owns the job; the
// store's directory guard covers concurrent lookups.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Request     PlaylistRequest `json:"request"`
	Progress    string          `json:"progress,omitempty"`
	Result      *PlaylistResult `json:"result,omitempty"`
	Error       *JobError       `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// JobError is the structured failure attached to a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// JobSummary is the listing shape returned by the orchestrator.
type JobSummary struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Description string     `json:"description"`
	Progress    string     `json:"progress,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Track is one resolved playlist entry.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	AlbumImage string `json:"albumImage,omitempty"`
	URI        string `json:"uri,omitempty"`
	DurationMS int    `json:"durationMs"`
}

// PlaylistResult is the opaque output payload of a completed job.
type PlaylistResult struct {
	PlaylistURL     string  `json:"playlistUrl,omitempty"`
	PlaylistTitle   string  `json:"playlistTitle"`
	Description     string  `json:"description"`
	TrackCount      int     `json:"trackCount"`
	Tracks          []Track `json:"tracks"`
	DurationMinutes float64 `json:"durationMinutes"`
	GenerationTime  float64 `json:"generationTime"`
	Success         bool    `json:"success"`
}
