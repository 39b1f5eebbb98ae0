package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// chatMessage is one turn of an OpenAI-style conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatClient speaks the OpenAI chat-completions wire protocol. It is shared
// by every OpenAI-compatible adapter (OpenAI itself and Kimi/Moonshot).
type chatClient struct {
	provider ProviderName
	apiKey   string
	baseURL  string
	client   *http.Client
}

func newChatClient(provider ProviderName, apiKey, baseURL string, timeout time.Duration) chatClient {
	return chatClient{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// chat sends a chat-completion request and returns the assistant content.
// jsonMode requests the backend's structured-output response format.
func (c *chatClient) chat(ctx context.Context, model string, messages []chatMessage, jsonMode bool) (string, error) {
	reqBody := chatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if jsonMode {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", mapTransportError(c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mapTransportError(c.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError(c.provider, resp.StatusCode, model, errorMessage(respBody), retryAfter(resp))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "malformed completion response"}
	}
	if len(completion.Choices) == 0 {
		return "", &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "completion contained no choices"}
	}

	return completion.Choices[0].Message.Content, nil
}

// listModels performs the cheap GET /models call used by health checks.
func (c *chatClient) listModels(ctx context.Context) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, mapTransportError(c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, mapTransportError(c.provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, mapStatusError(c.provider, resp.StatusCode, "", errorMessage(respBody), retryAfter(resp))
	}

	var listing struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &listing); err != nil {
		return 0, &APIError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "malformed model listing"}
	}

	return len(listing.Data), nil
}

func errorMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return string(body)
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// openAIProvider adapts the OpenAI chat-completions API.
type openAIProvider struct {
	chatClient
	opts Options
}

func newOpenAI(creds Credentials, opts Options) *openAIProvider {
	baseURL := openAIDefaultBaseURL
	if creds.Endpoint != "" {
		baseURL = creds.Endpoint
	}
	return &openAIProvider{
		chatClient: newChatClient(ProviderOpenAI, creds.APIKey, baseURL, opts.RequestTimeout),
		opts:       opts,
	}
}

func (p *openAIProvider) Metadata() Metadata {
	return Metadata{
		Name:                   ProviderOpenAI,
		DisplayName:            "OpenAI GPT",
		Category:               CategoryCommercial,
		Location:               LocationCloud,
		RequiresAPIKey:         true,
		OpenAICompatible:       true,
		SupportsModelDiscovery: false,
		Description:            "Most popular AI with strong creative and coding capabilities",
		Documentation:          "https://platform.openai.com/docs",
	}
}

func (p *openAIProvider) Capabilities() Capabilities {
	return Capabilities{
		Streaming:       true,
		FunctionCalling: true,
		Vision:          true,
		Embeddings:      true,
		MaxTokens:       4096,
	}
}

func (p *openAIProvider) Models() []Model {
	return []Model{
		{
			ID:            "gpt-4-turbo",
			Name:          "GPT-4 Turbo",
			Tier:          TierPremium,
			Provider:      ProviderOpenAI,
			ContextWindow: 128000,
			Description:   "Latest GPT-4 model",
			Pricing:       &Pricing{Input: 10.0, Output: 30.0},
		},
		{
			ID:            "gpt-4o",
			Name:          "GPT-4o",
			Tier:          TierStandard,
			Provider:      ProviderOpenAI,
			ContextWindow: 128000,
			Description:   "Fastest and most capable flagship model",
			Pricing:       &Pricing{Input: 5.0, Output: 15.0},
		},
		{
			ID:            "gpt-3.5-turbo",
			Name:          "GPT-3.5 Turbo",
			Tier:          TierFast,
			Provider:      ProviderOpenAI,
			ContextWindow: 16385,
			Description:   "Cost-effective model",
			Pricing:       &Pricing{Input: 0.5, Output: 1.5},
		},
	}
}

func (p *openAIProvider) DefaultModel() string { return "gpt-4o" }

func (p *openAIProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *openAIProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderOpenAI, Message: "API key is missing"}
	}

	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseAnalysis(ProviderOpenAI, content)
}

func (p *openAIProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error) {
	if !p.IsAvailable() {
		return nil, &AuthenticationError{Provider: ProviderOpenAI, Message: "API key is missing"}
	}

	content, err := p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "system", Content: optimizationSystemPrompt},
		{Role: "user", Content: optimizationUserMessage(prompt, analysis)},
	}, true)
	if err != nil {
		return nil, err
	}

	return parseOptimized(ProviderOpenAI, content)
}

func (p *openAIProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	if !p.IsAvailable() {
		return "", &AuthenticationError{Provider: ProviderOpenAI, Message: "API key is missing"}
	}

	return p.chat(ctx, resolveModel(modelID, p.DefaultModel()), []chatMessage{
		{Role: "user", Content: prompt},
	}, false)
}

func (p *openAIProvider) HealthCheck(ctx context.Context) HealthStatus {
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
