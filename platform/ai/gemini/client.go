// Package gemini adapts the hosted Gemini model to a single-turn call that
// takes the whole conversation history and returns the model's next content.
// This is part of the platform layer and contains no business logic.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm_assistant_backend/platform/apperr"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"

	"google.golang.org/genai"
)

// Reply is the model's answer to one turn: either final text, tool calls, or both.
type Reply struct {
	// Content is the raw model content to append to the conversation history.
	Content *genai.Content
	Text    string
	Calls   []*genai.FunctionCall
}

// Client calls a Gemini model with a fixed system instruction and tool catalog.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	config  *genai.GenerateContentConfig
	log     *logger.Logger
}

// NewClient creates a Gemini client. It returns nil without error when no API key
// is configured; callers treat a nil client as "model unavailable".
func NewClient(ctx context.Context, cfg config.GeminiConfig, systemInstruction string, tools []*genai.Tool, log *logger.Logger) (*Client, error) {
	if !cfg.IsGeminiEnabled() {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	timeout := cfg.GetModelTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		client:  client,
		model:   cfg.GetGeminiModel(),
		timeout: timeout,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Tools:             tools,
		},
		log: log,
	}, nil
}

// Generate sends the full history and returns the model's next reply.
func (c *Client) Generate(ctx context.Context, history []*genai.Content) (Reply, error) {
	if c == nil || c.client == nil {
		return Reply{}, apperr.Unavailable("model not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, history, c.config)
	if err != nil {
		return Reply{}, apperr.Unavailable("model request failed", err).WithOp("gemini.Generate")
	}
	c.log.Debug("model turn completed", "model", c.model, "elapsed", time.Since(start))

	return ReplyFromResponse(resp)
}

// ReplyFromResponse extracts text and function calls from the first candidate.
// Thought parts are skipped. A response without any usable content is an error.
func ReplyFromResponse(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return Reply{}, apperr.New(apperr.KindUnavailable, "model returned no candidates").WithOp("gemini.Generate")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return Reply{}, apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("model returned empty content (finish reason %s)", candidate.FinishReason)).WithOp("gemini.Generate")
	}

	content := candidate.Content
	if content.Role == "" {
		content.Role = genai.RoleModel
	}

	var texts []string
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
			continue
		}
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}

	return Reply{
		Content: content,
		Text:    strings.TrimSpace(strings.Join(texts, "")),
		Calls:   calls,
	}, nil
}
