package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Rewriter turns a caller-supplied edit instruction into a more conservative
// one. It is advisory: callers must fall back to the original instruction when
// a rewrite fails for any reason.
type Rewriter interface {
	Rewrite(ctx context.Context, instruction string) (string, error)
}

const systemPrompt = "You rewrite image-edit instructions for an apparel print design tool. " +
	"Rewrite the user's instruction so it changes only what the user asked for and " +
	"explicitly preserves everything else in the image: composition, colors, style and text. " +
	"Reply with the rewritten instruction only."

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatCompletionRequest struct {
		Model     string        `json:"model"`
		Messages  []chatMessage `json:"messages"`
		MaxTokens *int          `json:"max_tokens,omitempty"`
	}

	chatCompletionChoice struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}

	chatCompletionResponse struct {
		ID      string                 `json:"id"`
		Choices []chatCompletionChoice `json:"choices"`
	}
)

// Client rewrites instructions through an OpenAI-compatible chat-completions
// endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClientFromEnv reads OPENAI_API_KEY, OPENAI_BASE_URL and REWRITE_MODEL.
func NewClientFromEnv() *Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := os.Getenv("REWRITE_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	if apiKey == "" {
		logrus.Warn("OPENAI_API_KEY environment variable not set. Instruction rewriting will be skipped.")
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Rewrite(ctx context.Context, instruction string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("rewrite api key not configured")
	}

	maxTokens := 300
	body, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: instruction},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("rewrite request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("rewrite returned %s: %s", resp.Status, msg)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("rewrite returned unreadable body: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("rewrite returned no choices")
	}

	rewritten := strings.TrimSpace(out.Choices[0].Message.Content)
	if rewritten == "" {
		return "", fmt.Errorf("rewrite returned an empty instruction")
	}
	return rewritten, nil
}
