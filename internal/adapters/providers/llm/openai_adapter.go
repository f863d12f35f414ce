// Package llm provides the language-model collaborator adapter.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	"github.com/zatekoja/insurance-qa/pkg/config"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
)

// OpenAIAdapter calls an OpenAI-compatible chat completions endpoint.
type OpenAIAdapter struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

var _ providers.LLMProvider = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates a new chat completions client.
func NewOpenAIAdapter(cfg *config.OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	return &OpenAIAdapter{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.ChatModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete returns generated text for the prompt.
func (a *OpenAIAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build chat request", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewProviderError("chat request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewProviderError("failed to decode chat response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.NewProviderError("chat response contains no choices", nil)
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", apperrors.NewProviderError("chat response is empty", nil)
	}
	return answer, nil
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("generation provider returned status %d: %s", resp.StatusCode, string(detail))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewUnauthorizedError(msg)
	case resp.StatusCode == http.StatusBadRequest:
		// Includes content policy rejections
		return apperrors.NewValidationError(msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewProviderError(msg, nil)
	case resp.StatusCode >= 500:
		return apperrors.NewProviderError(msg, nil)
	default:
		return apperrors.NewInternalError(msg, nil)
	}
}
