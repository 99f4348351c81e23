package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MessagesGenerator calls a messages-style LLM API (the format used by
// Claude-compatible endpoints).
type MessagesGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewMessagesGenerator builds a messages-API TextGenerator.
// baseURL defaults to the hosted endpoint when empty.
func NewMessagesGenerator(baseURL, apiKey, model string) *MessagesGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &MessagesGenerator{
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(apiKey),
		model:     strings.TrimSpace(model),
		maxTokens: 1024,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GenerateText implements TextGenerator using the messages API.
func (g *MessagesGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("messages api key required")
	}
	if g.model == "" {
		return "", fmt.Errorf("messages generation model required")
	}

	reqBody := messagesRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    strings.TrimSpace(systemPrompt),
		Messages:  []chatMessage{{Role: "user", Content: userPrompt}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp messagesErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("messages api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("messages api error: %s", resp.Status)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("messages decode: %w", err)
	}
	var out strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("empty response from messages api")
	}
	return text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type messagesErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
