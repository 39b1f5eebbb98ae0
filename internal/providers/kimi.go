package providers

import (
	"context"
	"time"
)

const kimiDefaultBaseURL = "https://api.moonshot.cn/v1"

// kimiProvider adapts Moonshot AI's Kimi API, which is OpenAI-compatible.
type kimiProvider struct {
	chatClient
	opts Options
}

func newKimi(creds Credentials, opts Options) *kimiProvider {
	baseURL := kimiDefaultBaseURL
	if creds.Endpoint != "" {
		baseURL = creds.Endpoint
	}
	return &kimiProvider{
		chatClient: newChatClient(ProviderKimi, creds.APIKey, baseURL, opts.RequestTimeout),
		opts:       opts,
	}
}

func (p *kimiProvider) Metadata() Metadata {
	return Metadata{
		Name:                   ProviderKimi,
		DisplayName:            "Kimi AI",
		Category:               CategoryCommercial,
		Location:               LocationCloud,
		RequiresAPIKey:         true,
		OpenAICompatible:       true,
		SupportsModelDiscovery: false,
		Description:            "Moonshot AI's Kimi with extended context capabilities",
		Documentation:          "https://platform.moonshot.cn/docs",
	}
}

func (p *kimiProvider) Capabilities() Capabilities {
	return Capabilities{
		Streaming:       true,
		FunctionCalling: true,
		Vision:          false,
		Embeddings:      false,
		MaxTokens:       4096,
	}
}

func (p *kimiProvider) Models() []Model {
	return []Model{
		{
			ID:            "moonshot-v1-128k",
			Name:          "Kimi (128K)",
			Tier:          TierStandard,
			Provider:      ProviderKimi,
			ContextWindow: 128000,
			Description:   "Extended context window model for long documents",
			Pricing:       &Pricing{Input: 0.5, Output: 2.0},
		},
		{
			ID:            "moonshot-v1-32k",
			Name:          "Kimi (32K)",
			Tier:          TierFast,
			Provider:      ProviderKimi,
			ContextWindow: 32000,
			Description:   "Faster model with 32K context window",
			Pricing:       &Pricing{Input: 0.3, Output: 1.0},
		},
		{
			ID:            "moonshot-v1-8k",
			Name:          "Kimi (8K)",
			Tier:          TierFast,
			Provider:      ProviderKimi,
			ContextWindow: 8000,
			Description:   "Fastest model with 8K context window",
			Pricing:       &Pricing{Input: 0.1, Output: 0.5},
		},
	}
}

func (p *kimiProvider) DefaultModel() string { return "moonshot-v1-128k" }

func (p *kimiProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *kimiProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderKimi, Message: "API key is missing"}
	}

	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseAnalysis(ProviderKimi, content)
}

func (p *kimiProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderKimi, Message: "API key is missing"}
	}

	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "system", Content: optimizationSystemPrompt},
		{Role: "user", Content: optimizationUserMessage(prompt, analysis)},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseOptimized(ProviderKimi, content)
}

func (p *kimiProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	if !p.IsAvailable() {
		return "", &AuthenticationError{Provider: ProviderKimi, Message: "API key is missing"}
	}

	return p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "user", Content: prompt},
	}, false)
}

func (p *kimiProvider) HealthCheck(ctx context.Context) HealthStatus {
	if !p.IsAvailable() {
		return HealthStatus{Available: false, Error: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	count, err := p.listModels(ctx)
	if err != nil {
		return HealthStatus{Available: false, Error: err.Error()}
	}

	return HealthStatus{
		Available:   true,
		Latency:     time.Since(start),
		ModelsCount: count,
	}
}
