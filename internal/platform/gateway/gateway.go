// Package gateway is the C1 Model Gateway: the sole seam between the agent
// pipeline and the LLM provider, wrapping the openai-go SDK with bounded
// retry/backoff the way the teacher's hand-rolled OpenAI client retries raw
// HTTP calls (spec §4.1).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/bytedance/sonic"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/httpx"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// Client is the narrow surface the agent pipeline needs from the model
// provider (spec §4.1).
type Client interface {
	// GenerateText returns the full completion for a non-streaming turn
	// (used by the Router, spec §4.5).
	GenerateText(ctx context.Context, system, user string) (string, error)
	// GenerateJSON asks the model to emit a JSON object and decodes it via
	// sonic's tolerant parser after stripping common markdown fences.
	GenerateJSON(ctx context.Context, system, user string, out any) error
	// StreamText streams completion deltas to onDelta and returns the
	// accumulated text (used by the Synthesizer, spec §4.6).
	StreamText(ctx context.Context, system, user string, onDelta func(delta string)) (string, error)
	// Embed returns one embedding vector per input string (spec §4.2).
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type client struct {
	sdk          sdk.Client
	log          *logger.Logger
	chatModel    string
	embedModel   string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

type Config struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	EmbedModel   string
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func New(cfg Config, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gateway: api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gpt-5.2"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 4
	}
	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	return &client{
		sdk:          sdk.NewClient(opts...),
		log:          log.With("service", "Gateway"),
		chatModel:    chatModel,
		embedModel:   embedModel,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}, nil
}

// withRetry runs fn with exponential backoff and jitter, retrying only on
// classifiably transient errors (spec §4.1 "bounded retry with backoff").
func (c *client) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := c.initialDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !httpx.IsRetryableError(lastErr) || attempt == c.maxRetries {
			return lastErr
		}
		sleep := httpx.JitterSleep(backoff)
		c.log.Warn("gateway request retrying", "op", op, "attempt", attempt+1, "max_retries", c.maxRetries, "sleep", sleep.String(), "error", lastErr.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > c.maxDelay {
			backoff = c.maxDelay
		}
	}
	return lastErr
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	var text string
	err := c.withRetry(ctx, "generate_text", func() error {
		resp, err := c.sdk.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
			Model: sdk.ChatModel(c.chatModel),
			Messages: []sdk.ChatCompletionMessageParamUnion{
				sdk.SystemMessage(system),
				sdk.UserMessage(user),
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("gateway: empty choices from chat completion")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gateway: model returned empty text")
	}
	return text, nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user string, out any) error {
	text, err := c.GenerateText(ctx, system+"\n\nRespond with a single JSON object and nothing else.", user)
	if err != nil {
		return err
	}
	cleaned := stripMarkdownFence(text)
	if err := sonic.UnmarshalString(cleaned, out); err != nil {
		return fmt.Errorf("gateway: decode json response: %w; raw=%s", err, cleaned)
	}
	return nil
}

func (c *client) StreamText(ctx context.Context, system, user string, onDelta func(delta string)) (string, error) {
	var full strings.Builder
	err := c.withRetry(ctx, "stream_text", func() error {
		full.Reset()
		stream := c.sdk.Chat.Completions.NewStreaming(ctx, sdk.ChatCompletionNewParams{
			Model: sdk.ChatModel(c.chatModel),
			Messages: []sdk.ChatCompletionMessageParamUnion{
				sdk.SystemMessage(system),
				sdk.UserMessage(user),
			},
		})
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		return stream.Err()
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var out [][]float32
	err := c.withRetry(ctx, "embed", func() error {
		resp, err := c.sdk.Embeddings.New(ctx, sdk.EmbeddingNewParams{
			Model: sdk.EmbeddingModel(c.embedModel),
			Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: clean},
		})
		if err != nil {
			return err
		}
		out = make([][]float32, len(clean))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(out) {
				continue
			}
			vec := make([]float32, len(d.Embedding))
			for i, f := range d.Embedding {
				vec[i] = float32(f)
			}
			out[d.Index] = vec
		}
		for i := range out {
			if out[i] == nil {
				return fmt.Errorf("gateway: embeddings response missing index %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
