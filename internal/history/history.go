// Package history persists finished playlists and task outcomes to SQLite
// so they survive process restarts. The live job lifecycle never depends
// on it; every caller treats persistence failures as log-and-continue.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	playlist_url TEXT,
	track_count INTEGER NOT NULL DEFAULT 0,
	duration_minutes REAL NOT NULL DEFAULT 0,
	generation_time REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	album TEXT,
	album_image TEXT,
	uri TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tracks_playlist ON tracks(playlist_id);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	description TEXT,
	progress TEXT,
	result_json TEXT,
	error TEXT,
	completed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps the SQLite handle. A nil *DB is a valid no-op handle so callers
// can run without persistence configured.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying handle.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// PlaylistRecord is a stored playlist row without its tracks.
type PlaylistRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PlaylistURL     string    `json:"playlistUrl"`
	TrackCount      int       `json:"trackCount"`
	DurationMinutes float64   `json:"durationMinutes"`
	GenerationTime  float64   `json:"generationTime"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PlaylistDetail is a playlist row together with its tracks in order.
type PlaylistDetail struct {
	PlaylistRecord
	Tracks []model.Track `json:"tracks"`
}

// TaskRecord is a finished task outcome.
type TaskRecord struct {
	ID          string
	Status      string
	Description string
	Progress    string
	Result      *model.PlaylistResult
	Error       string
	CompletedAt time.Time
}

// SavePlaylist stores a generated playlist and its tracks in one
// transaction. Re-saving the same id replaces the previous rows.
func (d *DB) SavePlaylist(ctx context.Context, id string, res *model.PlaylistResult) error {
	if d == nil || d.db == nil {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (id, title, description, playlist_url, track_count, duration_minutes, generation_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			playlist_url = excluded.playlist_url,
			track_count = excluded.track_count,
			duration_minutes = excluded.duration_minutes,
			generation_time = excluded.generation_time`,
		id, res.PlaylistTitle, res.Description, res.PlaylistURL,
		res.TrackCount, res.DurationMinutes, res.GenerationTime,
	); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}
	for i, t := range res.Tracks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tracks (playlist_id, position, title, artist, album, album_image, uri, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, t.Title, t.Artist, t.Album, t.AlbumImage, t.URI, t.DurationMS,
		); err != nil {
			return fmt.Errorf("failed to save track: %w", err)
		}
	}
	return tx.Commit()
}

// GetPlaylists returns stored playlists, most recent first.
func (d *DB) GetPlaylists(ctx context.Context, limit int) ([]PlaylistRecord, error) {
	if d == nil || d.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, description, playlist_url, track_count, duration_minutes, generation_time, created_at
		FROM playlists ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	out := make([]PlaylistRecord, 0, limit)
	for rows.Next() {
		var p PlaylistRecord
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.PlaylistURL,
			&p.TrackCount, &p.DurationMinutes, &p.GenerationTime, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPlaylist returns one playlist with its tracks, or sql.ErrNoRows.
func (d *DB) GetPlaylist(ctx context.Context, id string) (*PlaylistDetail, error) {
	if d == nil || d.db == nil {
		return nil, sql.ErrNoRows
	}
	var p PlaylistDetail
	err := d.db.QueryRowContext(ctx, `
		SELECT id, title, description, playlist_url, track_count, duration_minutes, generation_time, created_at
		FROM playlists WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Description, &p.PlaylistURL,
			&p.TrackCount, &p.DurationMinutes, &p.GenerationTime, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT title, artist, album, album_image, uri, duration_ms
		FROM tracks WHERE playlist_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.Title, &t.Artist, &t.Album, &t.AlbumImage, &t.URI, &t.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		p.Tracks = append(p.Tracks, t)
	}
	return &p, rows.Err()
}

// DeletePlaylist removes a playlist and its tracks. Returns sql.ErrNoRows
// when nothing matched.
func (d *DB) DeletePlaylist(ctx context.Context, id string) error {
	if d == nil || d.db == nil {
		return sql.ErrNoRows
	}
	res, err := d.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveTask upserts a finished task outcome.
func (d *DB) SaveTask(ctx context.Context, rec TaskRecord) error {
	if d == nil || d.db == nil {
		return nil
	}
	var resultJSON sql.NullString
	if rec.Result != nil {
		b, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}
	var completed sql.NullTime
	if !rec.CompletedAt.IsZero() {
		completed = sql.NullTime{Time: rec.CompletedAt, Valid: true}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tasks (id, status, description, progress, result_json, error, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			result_json = excluded.result_json,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		rec.ID, rec.Status, rec.Description, rec.Progress, resultJSON, rec.Error, completed)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// CleanupOldTasks deletes task rows older than maxAge and returns how many
// were removed.
func (d *DB) CleanupOldTasks(ctx context.Context, maxAge time.Duration) (int64, error) {
	if d == nil || d.db == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)
	res, err := d.db.ExecContext(ctx, `DELETE FROM tasks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tasks: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarizes stored playlists for the stats endpoint.
type Stats struct {
	TotalPlaylists    int     `json:"totalPlaylists"`
	TotalTracks       int     `json:"totalTracks"`
	TotalMinutes      float64 `json:"totalMinutes"`
	AvgGenerationTime float64 `json:"avgGenerationTime"`
}

// GetStats aggregates across all stored playlists.
func (d *DB) GetStats(ctx context.Context) (*Stats, error) {
	if d == nil || d.db == nil {
		return &Stats{}, nil
	}
	var s Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(track_count), 0),
		       COALESCE(SUM(duration_minutes), 0),
		       COALESCE(AVG(generation_time), 0)
		FROM playlists`).
		Scan(&s.TotalPlaylists, &s.TotalTracks, &s.TotalMinutes, &s.AvgGenerationTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &s, nil
}
