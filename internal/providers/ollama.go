package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	ollamaDefaultEndpoint = "http://127.0.0.1:11434"

	// disableLocalEnv marks environments where local network access is not
	// allowed (e.g. serverless deployments); the ollama adapter reports
	// itself unavailable when it is set.
	disableLocalEnv = "EASYPROMPT_DISABLE_LOCAL"
)

// ollamaProvider adapts a local Ollama instance. It is the one adapter with
// model discovery: a successful health check replaces the static model list
// with what the backend reports.
type ollamaProvider struct {
	client   *api.Client
	endpoint string
	opts     Options

	// models starts as the static defaults and is replaced wholesale by
	// discovery. The adapter is per-request and never shared, so no
	// locking is needed.
	models []Model
}

func newOllama(creds Credentials, opts Options) (*ollamaProvider, error) {
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = ollamaDefaultEndpoint
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, &UnavailableError{Provider: ProviderOllama, Message: fmt.Sprintf("invalid endpoint %q: %v", endpoint, err)}
	}

	client := api.NewClient(base, &http.Client{Timeout: opts.RequestTimeout})

	return &ollamaProvider{
		client:   client,
		endpoint: endpoint,
		opts:     opts,
		models:   defaultOllamaModels(),
	}, nil
}

func defaultOllamaModels() []Model {
	return []Model{
		{
			ID:          "llama3.2",
			Name:        "Llama 3.2",
			Tier:        TierFree,
			Provider:    ProviderOllama,
			OpenSource:  true,
			Description: "Meta Llama 3.2, efficient and capable",
		},
		{
			ID:          "mistral",
			Name:        "Mistral 7B",
			Tier:        TierFree,
			Provider:    ProviderOllama,
			OpenSource:  true,
			Description: "Mistral AI 7B model",
		},
	}
}

func (p *ollamaProvider) Metadata() Metadata {
	return Metadata{
		Name:                   ProviderOllama,
		DisplayName:            "Ollama (Local)",
		Category:               CategoryOpenSource,
		Location:               LocationLocal,
		RequiresAPIKey:         false,
		OpenAICompatible:       false,
		SupportsModelDiscovery: true,
		Description:            "100% local, private, and free AI models",
		Documentation:          "https://ollama.ai/docs",
		DefaultEndpoint:        ollamaDefaultEndpoint,
	}
}

func (p *ollamaProvider) Capabilities() Capabilities {
	// Function calling, vision, and token limits vary by model; these are
	// the conservative defaults.
	return Capabilities{
		Streaming:       true,
		FunctionCalling: false,
		Vision:          true,
		Embeddings:      true,
		MaxTokens:       4096,
	}
}

func (p *ollamaProvider) Models() []Model { return p.models }

func (p *ollamaProvider) DefaultModel() string { return "llama3.2" }

func (p *ollamaProvider) IsAvailable() bool {
	return os.Getenv(disableLocalEnv) == ""
}

// chat sends a non-streaming chat request and returns the assistant content.
func (p *ollamaProvider) chat(ctx context.Context, model string, messages []api.Message, jsonMode bool) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}
	if jsonMode {
		req.Format = json.RawMessage(`"json"`)
	}

	var final api.ChatResponse
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return "", p.mapError(model, err)
	}

	return final.Message.Content, nil
}

// mapError translates ollama client errors into the shared taxonomy.
func (p *ollamaProvider) mapError(model string, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Status
		}
		if statusErr.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(message), "model") {
			return &ModelNotFoundError{Provider: ProviderOllama, Model: model}
		}
		return mapStatusError(ProviderOllama, statusErr.StatusCode, model, message, 0)
	}

	if strings.Contains(err.Error(), "connection refused") {
		return &UnavailableError{Provider: ProviderOllama, Message: "Ollama is not running or not reachable"}
	}

	return mapTransportError(ProviderOllama, err)
}

func (p *ollamaProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error) {
	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []api.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseAnalysis(ProviderOllama, content)
}

func (p *ollamaProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error) {
	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []api.Message{
		{Role: "system", Content: optimizationSystemPrompt},
		{Role: "user", Content: optimizationUserMessage(prompt, analysis)},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseOptimized(ProviderOllama, content)
}

func (p *ollamaProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	return p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []api.Message{
		{Role: "user", Content: prompt},
	}, false)
}

func (p *ollamaProvider) HealthCheck(ctx context.Context) HealthStatus {
	if !p.IsAvailable() {
		return HealthStatus{Available: false, Error: "local providers are disabled in this environment"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	listing, err := p.client.List(ctx)
	if err != nil {
		return HealthStatus{Available: false, Error: p.mapError("", err).Error()}
	}
	latency := time.Since(start)

	// Replace the static defaults with what the backend actually serves.
	discovered := make([]Model, 0, len(listing.Models))
	for _, m := range listing.Models {
		discovered = append(discovered, Model{
			ID:          m.Name,
			Name:        m.Name,
			Tier:        TierFree,
			Provider:    ProviderOllama,
			OpenSource:  true,
			Description: fmt.Sprintf("Size: %.1fGB", float64(m.Size)/(1024*1024*1024)),
		})
	}
	if len(discovered) > 0 {
		p.models = discovered
	}

	return HealthStatus{
		Available:   true,
		Latency:     latency,
		ModelsCount: len(listing.Models),
	}
}
