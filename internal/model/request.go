package model

// GenerateRequest is the inbound submit payload and the only type that
// binds the caller's Spotify tokens from JSON.
type GenerateRequest struct {
	Description     string `json:"description" validate:"required,min=1"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=10,max=300"`
	SpotifyToken    string `json:"spotifyToken,omitempty"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	ExpiresAt       int64  `json:"expiresAt,omitempty"`
}

// ToPlaylistRequest copies the payload into the stored request form.
func (r GenerateRequest) ToPlaylistRequest() PlaylistRequest {
	return PlaylistRequest{
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		SpotifyToken:    r.SpotifyToken,
		RefreshToken:    r.RefreshToken,
		ExpiresAt:       r.ExpiresAt,
	}
}

// PlaylistRequest is the request as kept on the job. The Spotify tokens are
// the caller's credentials for playlist creation and never appear in job
// snapshots: every marshal of a Job or its events excludes them.
type PlaylistRequest struct {
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	SpotifyToken    string `json:"-"`
	RefreshToken    string `json:"-"`
	ExpiresAt       int64  `json:"-"`
}

// NewsRequest asks for recent news about an artist, genre or mood.
type NewsRequest struct {
	Query string `json:"query" validate:"required,min=1,max=200"`
}

// NewsResponse carries the news summary back to the caller.
type NewsResponse struct {
	Query string `json:"query"`
	News  string `json:"news"`
}

// Message is one turn of a Q&A conversation.
type Message struct {
	Type    string `json:"type" validate:"required,oneof=user ai"`
	Content string `json:"content" validate:"required"`
}

// QuestionRequest is a music question with optional conversation memory.
type QuestionRequest struct {
	Question            string    `json:"question" validate:"required,min=1"`
	ConversationHistory []Message `json:"conversationHistory" validate:"omitempty,dive"`
}

// AnswerResponse is the Q&A reply.
type AnswerResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SubmitResponse acknowledges an accepted generation job.
type SubmitResponse struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}
