package inference

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/resilience"
)

// RemoteBackend generates text through a hosted inference API with
// bearer-token auth. The call is bounded by the client timeout; transient
// transport failures are retried by the resilience executor within one
// dispatch.
type RemoteBackend struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewRemoteBackend(endpoint, apiKey, model string, executor *resilience.Executor) *RemoteBackend {
	return &RemoteBackend{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		executor:   executor,
	}
}

func (b *RemoteBackend) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	reqBody := map[string]any{
		"prompt":      prompt,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"model":       b.model,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + b.apiKey,
	}

	var response struct {
		Response string `json:"response"`
		Text     string `json:"text"`
	}
	call := func(callCtx context.Context) error {
		return postJSON(callCtx, b.httpClient, b.endpoint, headers, reqBody, &response, "remote generate")
	}

	var err error
	if b.executor != nil {
		err = b.executor.Execute(ctx, "inference.generate", call, classifyTransportError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	if response.Response != "" {
		return strings.TrimSpace(response.Response), nil
	}
	return strings.TrimSpace(response.Text), nil
}

func (b *RemoteBackend) Info() ports.BackendInfo {
	return ports.BackendInfo{Kind: "api", Model: b.model}
}
