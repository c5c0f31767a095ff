package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/config"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
)

// PerplexityClient handles communication with the Perplexity API
// (OpenAI-compatible chat completions with online search).
type PerplexityClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewPerplexityClient creates a new Perplexity API client
func NewPerplexityClient(cfg *config.PerplexityConfig) *PerplexityClient {
	return &PerplexityClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// ChatCompletion sends a chat completion request and returns the first
// choice's content. Errors carry a retryability classification.
func (c *PerplexityClient) ChatCompletion(ctx context.Context, system, user string, temperature float64) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	reqBody := ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   2048,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", model.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", model.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.Transient(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, "perplexity", respBody)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", model.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}

	if len(chatResp.Choices) == 0 {
		return "", model.Permanent(fmt.Errorf("no choices in response"))
	}

	return chatResp.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *PerplexityClient) IsConfigured() bool {
	return c.apiKey != ""
}

var (
	referenceRegex = regexp.MustCompile(`\[\d+\]|\[\^\d+\]`)
	spacesRegex    = regexp.MustCompile(`\s+`)
)

// CleanOutput strips the citation markers Perplexity interleaves in answers
// and collapses runs of whitespace.
func CleanOutput(text string) string {
	if text == "" {
		return text
	}
	text = referenceRegex.ReplaceAllString(text, "")
	text = spacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
