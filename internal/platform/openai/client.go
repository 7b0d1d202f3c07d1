// Package openai implements generation.Client with any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/phrazzld/scry-bi/internal/generation"
)

// Client implements generation.Client using the chat completions API.
type Client struct {
	api          *goopenai.Client
	defaultModel string
	timeout      time.Duration
	logger       *slog.Logger
}

var _ generation.Client = (*Client)(nil)

// NewClient creates a chat completions client from LLM configuration.
// OpenAIBaseURL, when set, points the client at a compatible gateway.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model id cannot be empty", generation.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}

	return &Client{
		api:          goopenai.NewClientWithConfig(apiCfg),
		defaultModel: cfg.ModelID,
		timeout:      cfg.Timeout,
		logger:       logger.With("component", "openai_client"),
	}, nil
}

// Chat implements generation.Client.
func (c *Client) Chat(ctx context.Context, modelID, prompt string) (string, error) {
	if modelID == "" {
		modelID = c.defaultModel
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: modelID,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: generation.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "chat completion failed",
			"model", modelID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", generation.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return "", generation.ErrContentBlocked
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("%w: empty text", generation.ErrInvalidResponse)
	}

	c.logger.DebugContext(ctx, "chat completion succeeded",
		"model", modelID,
		"reply_length", len(choice.Message.Content),
		"duration_ms", time.Since(start).Milliseconds())
	return choice.Message.Content, nil
}
