package handler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/cache"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/client"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
	"github.com/angelocurti/Agentic-Playlist-Generator/pkg/response"
)

const newsSystemPrompt = "You are a music journalist. Summarize the latest, most relevant news " +
	"for the topic the user gives you. Stick to music: releases, tours, collaborations, " +
	"industry moves. Be concise and factual."

const askSystemPrompt = "You are a knowledgeable music assistant. Answer questions about songs, " +
	"artists, genres and music history. Keep answers focused and conversational."

const summarizePrompt = "Summarize the following conversation in a few sentences, keeping the " +
	"facts and preferences the user expressed. The summary replaces the messages verbatim."

// Conversations longer than this get their middle summarized so prompts
// stay bounded. The first and last few turns are kept verbatim.
const (
	maxHistoryMessages = 20
	keepHeadMessages   = 5
	keepTailMessages   = 5
)

type NewsHandler struct {
	llm       *client.PerplexityClient
	cache     *cache.Cache
	validator *validator.Validate
}

func NewNewsHandler(llm *client.PerplexityClient, c *cache.Cache, v *validator.Validate) *NewsHandler {
	return &NewsHandler{
		llm:       llm,
		cache:     c,
		validator: v,
	}
}

// News handles POST /news
func (h *NewsHandler) News(c *fiber.Ctx) error {
	var req model.NewsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	query := strings.TrimSpace(req.Query)
	if cached, ok := h.cache.GetNews(c.Context(), query); ok {
		return response.OK(c, model.NewsResponse{Query: query, News: cached})
	}

	if !h.llm.IsConfigured() {
		return response.OK(c, model.NewsResponse{
			Query: query,
			News:  fmt.Sprintf("No live news source is configured. Ask again later for updates on %q.", query),
		})
	}

	news, err := h.llm.ChatCompletion(c.Context(), newsSystemPrompt, query, 0.3)
	if err != nil {
		return response.AIError(c, "Failed to fetch news")
	}
	news = client.CleanOutput(news)

	h.cache.SetNews(c.Context(), query, news)
	return response.OK(c, model.NewsResponse{Query: query, News: news})
}

// Ask handles POST /ask
func (h *NewsHandler) Ask(c *fiber.Ctx) error {
	var req model.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if !h.llm.IsConfigured() {
		return response.OK(c, model.AnswerResponse{
			Question: req.Question,
			Answer:   "No language model is configured, so I can't answer right now.",
		})
	}

	history, err := h.condenseHistory(c, req.ConversationHistory)
	if err != nil {
		return response.AIError(c, "Failed to process conversation history")
	}

	var prompt strings.Builder
	for _, m := range history {
		fmt.Fprintf(&prompt, "%s: %s\n", m.Type, m.Content)
	}
	fmt.Fprintf(&prompt, "user: %s", req.Question)

	answer, err := h.llm.ChatCompletion(c.Context(), askSystemPrompt, prompt.String(), 0.7)
	if err != nil {
		return response.AIError(c, "Failed to answer question")
	}

	return response.OK(c, model.AnswerResponse{
		Question: req.Question,
		Answer:   client.CleanOutput(answer),
	})
}

// condenseHistory replaces the middle of a long conversation with a single
// summary turn so the prompt never grows without bound.
func (h *NewsHandler) condenseHistory(c *fiber.Ctx, history []model.Message) ([]model.Message, error) {
	if len(history) <= maxHistoryMessages {
		return history, nil
	}

	head := history[:keepHeadMessages]
	tail := history[len(history)-keepTailMessages:]
	middle := history[keepHeadMessages : len(history)-keepTailMessages]

	var raw strings.Builder
	for _, m := range middle {
		fmt.Fprintf(&raw, "%s: %s\n", m.Type, m.Content)
	}

	summary, err := h.llm.ChatCompletion(c.Context(), summarizePrompt, raw.String(), 0.2)
	if err != nil {
		return nil, err
	}

	condensed := make([]model.Message, 0, keepHeadMessages+keepTailMessages+1)
	condensed = append(condensed, head...)
	condensed = append(condensed, model.Message{
		Type:    "ai",
		Content: "Earlier conversation summary: " + client.CleanOutput(summary),
	})
	condensed = append(condensed, tail...)
	return condensed, nil
}
