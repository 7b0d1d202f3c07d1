package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/phrazzld/scry-bi/internal/generation"
	"google.golang.org/genai"
)

// contentGenerator is the subset of the genai Models service used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.Client using the Gemini API.
type Client struct {
	models       contentGenerator
	defaultModel string
	timeout      time.Duration
	logger       *slog.Logger
}

var _ generation.Client = (*Client)(nil)

// NewClient creates a Gemini client from LLM configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model id cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newClient(client.Models, cfg.ModelID, cfg.Timeout, logger), nil
}

func newClient(models contentGenerator, defaultModel string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		models:       models,
		defaultModel: defaultModel,
		timeout:      timeout,
		logger:       logger.With("component", "gemini_client"),
	}
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
	resp, err := c.models.GenerateContent(ctx, modelID, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: generation.SystemPrompt}},
		},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "gemini call failed",
			"model", modelID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	text, err := extractText(resp)
	if err != nil {
		c.logger.WarnContext(ctx, "unusable gemini response", "model", modelID, "error", err)
		return "", err
	}

	c.logger.DebugContext(ctx, "gemini call succeeded",
		"model", modelID,
		"reply_length", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty text", generation.ErrInvalidResponse)
	}
	return b.String(), nil
}
