package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// InterpretStage turns the free-text request into a musical direction the
// retrieval stage can research. Falls back to a literal reading of the
// request when no language model is configured.
type InterpretStage struct {
	llm *client.PerplexityClient
}

func NewInterpretStage(llm *client.PerplexityClient) *InterpretStage {
	return &InterpretStage{llm: llm}
}

func (s *InterpretStage) Name() string { return "interpret" }

func (s *InterpretStage) Run(ctx context.Context, st *State, report ReportFunc) error {
	report("Processing your request...")

	if s.llm == nil || !s.llm.IsConfigured() {
		st.Context = fmt.Sprintf("A playlist matching: %s. Mood and genre taken literally from the request.", st.Request.Description)
		return nil
	}

	out, err := s.llm.ChatCompletion(ctx, interpretPrompt, st.Request.Description, 0.4)
	if err != nil {
		return err
	}
	out = client.CleanOutput(out)
	if strings.TrimSpace(out) == "" {
		return model.Permanent(fmt.Errorf("empty interpretation from model"))
	}
	st.Context = out
	return nil
}
