package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultCompletionURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel         = "mistralai/mistral-7b-instruct"
)

// OpenRouterClient is a Completer over an OpenAI-style chat-completions API.
type OpenRouterClient struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewOpenRouterClient returns a client for the given key. url and model fall
// back to the hosted OpenRouter defaults when empty.
func NewOpenRouterClient(url, apiKey, model string, timeout time.Duration) *OpenRouterClient {
	if url == "" {
		url = defaultCompletionURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenRouterClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenRouterClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: []completionMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completion API: %w", err)
	}
	defer resp.Body.Close()

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding completion response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("completion API error: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(result.Choices) == 0 {
		return "", fmt.Errorf("completion API returned no choices (status %d)", resp.StatusCode)
	}

	return result.Choices[0].Message.Content, nil
}
