package pipeline

import (
	"context"
	"strings"
	"testing"
)

// The stages below run their unconfigured fallback paths, which is exactly
// what a deployment without API keys does.

func TestInterpretStageFallback(t *testing.T) {
	stage := NewInterpretStage(nil)
	st := &State{Request: testRequest("late night drive, neon lights")}

	var label string
	if err := stage.Run(context.Background(), st, func(l string) { label = l }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "Processing your request..." {
		t.Errorf("wrong progress label: %q", label)
	}
	if !strings.Contains(st.Context, "late night drive, neon lights") {
		t.Errorf("context does not echo the request: %q", st.Context)
	}
}

func TestRetrieveStageFallback(t *testing.T) {
	stage := NewRetrieveStage(nil)
	st := &State{
		Request: testRequest("synthwave"),
		Context: "retro electronic, night driving",
	}

	if err := stage.Run(context.Background(), st, func(string) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Candidates) == 0 {
		t.Fatal("no candidates produced")
	}
	if !strings.Contains(st.Candidates[0], " - ") {
		t.Errorf("candidates not line-shaped: %q", st.Candidates[0])
	}
}

func TestRetrieveStageResetsCandidatesOnRetry(t *testing.T) {
	stage := NewRetrieveStage(nil)
	st := &State{Request: testRequest("synthwave")}

	stage.Run(context.Background(), st, func(string) {})
	first := len(st.Candidates)
	stage.Run(context.Background(), st, func(string) {})

	if len(st.Candidates) != first {
		t.Errorf("candidates accumulated across retries: %d then %d", first, len(st.Candidates))
	}
}

func TestMaterializeStageFallback(t *testing.T) {
	stage := NewMaterializeStage(nil, nil, 60)
	st := &State{
		Request: testRequest("late night drive"),
		Title:   "Neon Drive",
		Songs: []Song{
			{Artist: "Kavinsky", Title: "Nightcall"},
			{Artist: "M83", Title: "Midnight City"},
		},
	}

	if err := stage.Run(context.Background(), st, func(string) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := st.Result
	if res == nil {
		t.Fatal("no result produced")
	}
	if res.TrackCount != 2 || len(res.Tracks) != 2 {
		t.Errorf("wrong track count: %d", res.TrackCount)
	}
	if res.PlaylistTitle != "Neon Drive" {
		t.Errorf("wrong title: %q", res.PlaylistTitle)
	}
	if res.Description != "late night drive" {
		t.Errorf("description does not echo request: %q", res.Description)
	}
	if res.Success {
		t.Error("mock result claims a real playlist was created")
	}
	if res.DurationMinutes <= 0 {
		t.Error("mock result has no duration")
	}
}

func TestFullPipelineFallback(t *testing.T) {
	st := &State{Request: testRequest("late night drive, neon lights")}
	stages := []Stage{
		NewInterpretStage(nil),
		NewRetrieveStage(nil),
		NewCurateStage(nil),
		NewMaterializeStage(nil, nil, 60),
	}

	for _, stage := range stages {
		if err := stage.Run(context.Background(), st, func(string) {}); err != nil {
			t.Fatalf("stage %s failed: %v", stage.Name(), err)
		}
	}

	if st.Result == nil || st.Result.TrackCount == 0 {
		t.Fatalf("pipeline produced no tracks: %+v", st.Result)
	}
}
