package pipeline

import (
	"context"
	"fmt"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// retrievalAngles are the research passes run against the search model:
// the mainstream reading of the request, deeper cuts, and a lyrical-theme
// pass. Each contributes candidates that curation dedupes later.
var retrievalAngles = []struct {
	name   string
	prompt string
}{
	{"mainstream", "Focus on well-known, defining songs for this direction."},
	{"deep_cuts", "Focus on deep cuts, B-sides and underappreciated songs from relevant artists and scenes. Avoid the obvious hits."},
	{"themes", "Focus on songs whose lyrical themes match the direction, across eras and genres."},
}

// RetrieveStage researches candidate songs for the interpreted direction.
type RetrieveStage struct {
	search *client.PerplexityClient
}

func NewRetrieveStage(search *client.PerplexityClient) *RetrieveStage {
	return &RetrieveStage{search: search}
}

func (s *RetrieveStage) Name() string { return "retrieve" }

func (s *RetrieveStage) Run(ctx context.Context, st *State, report ReportFunc) error {
	report("Searching over millions of sources...")

	// Retries restart the whole stage; drop partial results from a prior
	// attempt so candidates are not duplicated.
	st.Candidates = nil

	if s.search == nil || !s.search.IsConfigured() {
		st.Candidates = append(st.Candidates, mockCandidates)
		return nil
	}

	userPrompt := fmt.Sprintf("Musical direction:\n%s\n\nOriginal request: %s", st.Context, st.Request.Description)
	for _, angle := range retrievalAngles {
		out, err := s.search.ChatCompletion(ctx, retrievePrompt+"\n"+angle.prompt, userPrompt, 0.4)
		if err != nil {
			return err
		}
		st.Candidates = append(st.Candidates, fmt.Sprintf("[%s]\n%s", angle.name, client.CleanOutput(out)))
	}

	if len(st.Candidates) == 0 {
		return model.Permanent(fmt.Errorf("no candidates retrieved"))
	}
	return nil
}

// mockCandidates keeps the pipeline deterministic when no search backend
// is configured.
const mockCandidates = `[mock]
The Midnight - Los Angeles
Kavinsky - Nightcall
The Weeknd - Blinding Lights
M83 - Midnight City
Timecop1983 - On the Run
Daft Punk - Instant Crush
Chromatics - Tick of the Clock
College - A Real Hero`
