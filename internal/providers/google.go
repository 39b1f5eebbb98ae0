package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// googleProvider adapts the Google Gemini generateContent API.
type googleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	opts    Options
}

func newGoogle(creds Credentials, opts Options) *googleProvider {
	baseURL := googleDefaultBaseURL
	if creds.Endpoint != "" {
		baseURL = creds.Endpoint
	}
	return &googleProvider{
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

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generate calls models/{model}:generateContent and returns the text of the
// first candidate.
func (p *googleProvider) generate(ctx context.Context, model, system, user string, jsonMode bool) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
	}
	if system != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if jsonMode {
		reqBody.GenerationConfig = map[string]any{"responseMimeType": "application/json"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", mapTransportError(ProviderGoogle, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mapTransportError(ProviderGoogle, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError(ProviderGoogle, resp.StatusCode, model, errorMessage(respBody), retryAfter(resp))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{Provider: ProviderGoogle, StatusCode: resp.StatusCode, Message: "malformed generateContent response"}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &APIError{Provider: ProviderGoogle, StatusCode: resp.StatusCode, Message: "response contained no candidates"}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (p *googleProvider) Metadata() Metadata {
	return Metadata{
		Name:                   ProviderGoogle,
		DisplayName:            "Google Gemini",
		Category:               CategoryCommercial,
		Location:               LocationCloud,
		RequiresAPIKey:         true,
		OpenAICompatible:       false,
		SupportsModelDiscovery: false,
		Description:            "Fast, capable AI with multimodal support",
		Documentation:          "https://ai.google.dev/docs",
	}
}

func (p *googleProvider) Capabilities() Capabilities {
	return Capabilities{
		Streaming:       true,
		FunctionCalling: true,
		Vision:          true,
		Embeddings:      true,
		MaxTokens:       8192,
	}
}

func (p *googleProvider) Models() []Model {
	return []Model{
		{
			ID:            "gemini-1.5-flash-latest",
			Name:          "Gemini 1.5 Flash",
			Tier:          TierFast,
			Provider:      ProviderGoogle,
			ContextWindow: 1000000,
			Description:   "Fast and versatile multimodal model",
		},
		{
			ID:            "gemini-1.5-pro-latest",
			Name:          "Gemini 1.5 Pro",
			Tier:          TierPremium,
			Provider:      ProviderGoogle,
			ContextWindow: 2000000,
			Description:   "Best performing multimodal model",
		},
	}
}

func (p *googleProvider) DefaultModel() string { return "gemini-1.5-flash-latest" }

func (p *googleProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *googleProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderGoogle, Message: "API key is missing"}
	}

	content, err := p.generate(ctx, resolveModel(modelID, p.DefaultModel()), analysisSystemPrompt, fmt.Sprintf("Analyze this prompt: %s", prompt), true)
	if err != nil {
		return nil, err
	}

	return parseAnalysis(ProviderGoogle, content)
}

func (p *googleProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderGoogle, Message: "API key is missing"}
	}

	content, err := p.generate(ctx, resolveModel(modelID, p.DefaultModel()), optimizationSystemPrompt, optimizationUserMessage(prompt, analysis), true)
	if err != nil {
		return nil, err
	}

	return parseOptimized(ProviderGoogle, content)
}

func (p *googleProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	if !p.IsAvailable() {
		return "", &AuthenticationError{Provider: ProviderGoogle, Message: "API key is missing"}
	}

	return p.generate(ctx, resolveModel(modelID, p.DefaultModel()), "", prompt, false)
}

func (p *googleProvider) HealthCheck(ctx context.Context) HealthStatus {
	if !p.IsAvailable() {
		return HealthStatus{Available: false, Error: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if _, err := p.generate(ctx, p.DefaultModel(), "", "Hi", false); err != nil {
		return HealthStatus{Available: false, Error: err.Error()}
	}

	return HealthStatus{
		Available:   true,
		Latency:     time.Since(start),
		ModelsCount: len(p.Models()),
	}
}
