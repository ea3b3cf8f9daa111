// Package answer turns retrieved context into a natural-language answer
// through an OpenAI-compatible chat-completions endpoint.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// Defaults for Config.
const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	DefaultTimeout  = 30 * time.Second
)

// Provider answers a question from a system prompt and document context.
type Provider interface {
	Answer(ctx context.Context, systemPrompt, docContext, question string) (string, error)
}

// Config configures a ChatClient.
type Config struct {
	// Endpoint is the API base URL; "/chat/completions" is appended.
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// ChatClient calls a chat-completions endpoint.
type ChatClient struct {
	client   *http.Client
	endpoint string
	model    string
	apiKey   string
}

var _ Provider = (*ChatClient)(nil)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatClient returns a client for cfg.
func NewChatClient(cfg Config) *ChatClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ChatClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
	}
}

// Answer sends one system and one user message and returns the first
// choice.
func (c *ChatClient) Answer(ctx context.Context, systemPrompt, docContext, question string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: UserMessage(docContext, question)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed, "chat request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed, "failed to read chat response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed,
			fmt.Sprintf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed, "failed to decode chat response", err)
	}
	if out.Error != nil {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed, out.Error.Message, nil)
	}
	if len(out.Choices) == 0 {
		return "", docerrors.New(docerrors.ErrCodeAnswerFailed, "chat response has no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}

// UserMessage formats the user turn.
func UserMessage(docContext, question string) string {
	return "Document:\n" + docContext + "\n\nQuestion:\n" + question
}
