package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// anthropicProvider adapts the Anthropic messages API.
type anthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	opts    Options
}

func newAnthropic(creds Credentials, opts Options) *anthropicProvider {
	baseURL := anthropicDefaultBaseURL
	if creds.Endpoint != "" {
		baseURL = creds.Endpoint
	}
	return &anthropicProvider{
		apiKey:  creds.APIKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts: opts,
	}
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// message sends one request to the messages endpoint and returns the text of
// the first content block.
func (p *anthropicProvider) message(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", mapTransportError(ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mapTransportError(ProviderAnthropic, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError(ProviderAnthropic, resp.StatusCode, model, errorMessage(respBody), retryAfter(resp))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Message: "malformed message response"}
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &APIError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Message: "response contained no text block"}
}

func (p *anthropicProvider) Metadata() Metadata {
	return Metadata{
		Name:                   ProviderAnthropic,
		DisplayName:            "Anthropic Claude",
		Category:               CategoryCommercial,
		Location:               LocationCloud,
		RequiresAPIKey:         true,
		OpenAICompatible:       false,
		SupportsModelDiscovery: false,
		Description:            "Most intelligent AI model with exceptional reasoning",
		Documentation:          "https://docs.anthropic.com",
	}
}

func (p *anthropicProvider) Capabilities() Capabilities {
	return Capabilities{
		Streaming:       true,
		FunctionCalling: true,
		Vision:          true,
		Embeddings:      false,
		MaxTokens:       anthropicMaxTokens,
	}
}

func (p *anthropicProvider) Models() []Model {
	return []Model{
		{
			ID:            "claude-3-5-sonnet-20241022",
			Name:          "Claude 3.5 Sonnet",
			Tier:          TierStandard,
			Provider:      ProviderAnthropic,
			ContextWindow: 200000,
			Description:   "Most intelligent model",
			Pricing:       &Pricing{Input: 3.0, Output: 15.0},
		},
		{
			ID:            "claude-3-opus-20240229",
			Name:          "Claude 3 Opus",
			Tier:          TierPremium,
			Provider:      ProviderAnthropic,
			ContextWindow: 200000,
			Description:   "Powerful model for complex tasks",
			Pricing:       &Pricing{Input: 15.0, Output: 75.0},
		},
		{
			ID:            "claude-3-haiku-20240307",
			Name:          "Claude 3 Haiku",
			Tier:          TierFast,
			Provider:      ProviderAnthropic,
			ContextWindow: 200000,
			Description:   "Fastest and most compact model",
			Pricing:       &Pricing{Input: 0.25, Output: 1.25},
		},
	}
}

func (p *anthropicProvider) DefaultModel() string { return "claude-3-haiku-20240307" }

func (p *anthropicProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *anthropicProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderAnthropic, Message: "API key is missing"}
	}

	content, err := p.message(ctx, resolveModel(modelID, p.DefaultModel()), analysisSystemPrompt, prompt, anthropicMaxTokens)
	if err != nil {
		return nil, err
	}

	return parseAnalysis(ProviderAnthropic, content)
}

func (p *anthropicProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderAnthropic, Message: "API key is missing"}
	}

	content, err := p.message(ctx, resolveModel(modelID, p.DefaultModel()), optimizationSystemPrompt, optimizationUserMessage(prompt, analysis), anthropicMaxTokens)
	if err != nil {
		return nil, err
	}

	return parseOptimized(ProviderAnthropic, content)
}

func (p *anthropicProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	if !p.IsAvailable() {
		return "", &AuthenticationError{Provider: ProviderAnthropic, Message: "API key is missing"}
	}

	return p.message(ctx, resolveModel(modelID, p.DefaultModel()), "", prompt, anthropicMaxTokens)
}

func (p *anthropicProvider) HealthCheck(ctx context.Context) HealthStatus {
	if !p.IsAvailable() {
		return HealthStatus{Available: false, Error: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.HealthCheckTimeout)
	defer cancel()

	// Single-token exchange is the cheapest live connectivity check the
	// messages API offers.
	start := time.Now()
	if _, err := p.message(ctx, p.DefaultModel(), "", "Hi", 1); err != nil {
		return HealthStatus{Available: false, Error: err.Error()}
	}

	return HealthStatus{
		Available:   true,
		Latency:     time.Since(start),
		ModelsCount: len(p.Models()),
	}
}
