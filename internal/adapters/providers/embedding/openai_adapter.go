// Package embedding provides the embedding collaborator adapters: an
// OpenAI-compatible HTTP client and a deterministic hash fallback used when
// the provider is disabled.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	"github.com/zatekoja/insurance-qa/pkg/config"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
)

// OpenAIAdapter calls an OpenAI-compatible embeddings endpoint.
type OpenAIAdapter struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

var _ providers.EmbeddingProvider = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates a new embeddings client.
func NewOpenAIAdapter(cfg *config.OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	return &OpenAIAdapter{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.EmbeddingDimensions,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

type embeddingRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := embeddingRequest{
		Input:      text,
		Model:      a.model,
		Dimensions: a.dimensions,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build embedding request", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError("embedding request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("embedding", resp); err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewProviderError("failed to decode embedding response", err)
	}
	if len(parsed.Data) == 0 {
		return nil, apperrors.NewProviderError("embedding response contains no data", nil)
	}

	return parsed.Data[0].Embedding, nil
}

// Dimension returns the configured vector dimensionality.
func (a *OpenAIAdapter) Dimension() int {
	return a.dimensions
}

// classifyStatus maps an HTTP status onto the error taxonomy so the retry
// executor can tell retryable failures from terminal ones.
func classifyStatus(provider string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s provider returned status %d: %s", provider, resp.StatusCode, string(detail))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewUnauthorizedError(msg)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.NewValidationError(msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		// Provider-reported throttling is transient
		return apperrors.NewProviderError(msg, nil)
	case resp.StatusCode >= 500:
		return apperrors.NewProviderError(msg, nil)
	default:
		return apperrors.NewInternalError(msg, nil)
	}
}
