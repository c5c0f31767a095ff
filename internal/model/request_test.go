package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJobSnapshotOmitsSpotifyTokens(t *testing.T) {
	job := Job{
		ID:     "job-1",
		Status: JobStatusProcessing,
		Request: PlaylistRequest{
			Description:     "rainy day jazz",
			DurationMinutes: 45,
			SpotifyToken:    "access-token-value",
			RefreshToken:    "refresh-token-value",
			ExpiresAt:       4102444800,
		},
		Progress:  "Searching over millions of sources...",
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	body := string(data)

	for _, leak := range []string{
		"access-token-value",
		"refresh-token-value",
		"spotifyToken",
		"refreshToken",
		"expiresAt",
	} {
		if strings.Contains(body, leak) {
			t.Errorf("job snapshot contains %q: %s", leak, body)
		}
	}
	if !strings.Contains(body, "rainy day jazz") {
		t.Errorf("job snapshot lost the description: %s", body)
	}

	evData, err := json.Marshal(EventFromJob(&job))
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if strings.Contains(string(evData), "token-value") {
		t.Errorf("progress event contains token material: %s", evData)
	}
}

func TestGenerateRequestBindsAndCarriesTokens(t *testing.T) {
	payload := `{"description":"gym set","durationMinutes":45,"spotifyToken":"tok","refreshToken":"ref","expiresAt":123}`
	var req GenerateRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	stored := req.ToPlaylistRequest()
	if stored.Description != "gym set" || stored.DurationMinutes != 45 {
		t.Errorf("request fields lost: %+v", stored)
	}
	if stored.SpotifyToken != "tok" || stored.RefreshToken != "ref" || stored.ExpiresAt != 123 {
		t.Errorf("token fields lost: %+v", stored)
	}
}
