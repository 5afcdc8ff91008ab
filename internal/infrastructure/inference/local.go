package inference

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// LocalBackend generates text through a local Ollama-compatible model
// server. All mutable state lives per call; the backend is safe for
// concurrent use.
type LocalBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewLocalBackend(baseURL, model string) *LocalBackend {
	return &LocalBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *LocalBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	reqBody := map[string]any{
		"model":  b.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, b.httpClient, b.baseURL+"/api/generate", nil, reqBody, &response, "local generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (b *LocalBackend) Info() ports.BackendInfo {
	return ports.BackendInfo{Kind: "local", Model: b.model}
}
