package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// SystemPrompt frames every auto-response.
const SystemPrompt = "You are responding to an intern's message in a virtual internship program. Be helpful, professional, encouraging, and concise."

// FallbackText is sent when no completion could be produced.
const FallbackText = "Thank you for your message! I've received your response and will get back to you shortly if any follow-up is needed."

var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer produces a chat completion for a user prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the settings for the completion endpoint
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration // zero leaves the call unbounded
}

// Client calls an OpenAI-compatible chat completion endpoint
type Client struct {
	api    *openai.Client
	config Config
	logger *logrus.Logger
}

func NewClient(config Config, logger *logrus.Logger) *Client {
	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	return &Client{
		api:    openai.NewClientWithConfig(apiConfig),
		config: config,
		logger: logger,
	}
}

// Complete sends prompt with the fixed system prompt and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.WithFields(logrus.Fields{
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat completion succeeded")

	return content, nil
}
