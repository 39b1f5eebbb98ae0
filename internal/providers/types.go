package providers

import (
	"context"
	"time"
)

// ProviderName enumerates the supported backends. The set is closed: every
// name maps to exactly one adapter in the factory, and an unrecognized name
// is a configuration error.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGoogle    ProviderName = "google"
	ProviderKimi      ProviderName = "kimi"
	ProviderOllama    ProviderName = "ollama"
)

// SupportedProviders returns all provider names in their fixed enumeration
// order. Aggregations (provider listings, comparisons) preserve this order.
func SupportedProviders() []ProviderName {
	return []ProviderName{
		ProviderAnthropic,
		ProviderOpenAI,
		ProviderGoogle,
		ProviderKimi,
		ProviderOllama,
	}
}

// IsSupported reports whether name is one of the supported providers.
func IsSupported(name ProviderName) bool {
	for _, p := range SupportedProviders() {
		if p == name {
			return true
		}
	}
	return false
}

// Category classifies a provider's business model.
type Category string

const (
	CategoryCommercial Category = "commercial"
	CategoryOpenSource Category = "open-source"
)

// Location describes where the backend runs.
type Location string

const (
	LocationCloud Location = "cloud"
	LocationLocal Location = "local"
)

// ModelTier is a coarse quality/cost classification of a model.
type ModelTier string

const (
	TierFree     ModelTier = "free"
	TierFast     ModelTier = "fast"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// Metadata is the immutable per-adapter description. Set once at adapter
// construction and never mutated.
type Metadata struct {
	Name                   ProviderName `json:"name"`
	DisplayName            string       `json:"display_name"`
	Category               Category     `json:"category"`
	Location               Location     `json:"location"`
	RequiresAPIKey         bool         `json:"requires_api_key"`
	OpenAICompatible       bool         `json:"openai_compatible"`
	SupportsModelDiscovery bool         `json:"supports_model_discovery"`
	Description            string       `json:"description"`
	Documentation          string       `json:"documentation"`
	DefaultEndpoint        string       `json:"default_endpoint,omitempty"`
}

// Pricing is the cost per one million tokens, in USD.
type Pricing struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Model describes one model a provider can serve.
type Model struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Tier          ModelTier    `json:"tier"`
	Provider      ProviderName `json:"provider"`
	Description   string       `json:"description,omitempty"`
	ContextWindow int          `json:"context_window,omitempty"`
	Pricing       *Pricing     `json:"pricing,omitempty"`
	OpenSource    bool         `json:"open_source,omitempty"`
}

// Capabilities describes what a backend supports. Read-only per adapter.
type Capabilities struct {
	Streaming       bool `json:"streaming"`
	FunctionCalling bool `json:"function_calling"`
	Vision          bool `json:"vision"`
	Embeddings      bool `json:"embeddings"`
	MaxTokens       int  `json:"max_tokens"`
}

// HealthStatus is the result of a health check.
type HealthStatus struct {
	Available   bool          `json:"available"`
	Latency     time.Duration `json:"latency,omitempty"`
	Error       string        `json:"error,omitempty"`
	ModelsCount int           `json:"models_count,omitempty"`
}

// AnalysisResult is the structured outcome of analyzing a prompt.
type AnalysisResult struct {
	Issues      []string     `json:"issues"`
	Suggestions []string     `json:"suggestions"`
	Score       int          `json:"score"`
	Provider    ProviderName `json:"provider"`
}

// OptimizedPrompt is the structured outcome of rewriting a prompt.
type OptimizedPrompt struct {
	Text         string   `json:"text"`
	Improvements []string `json:"improvements"`
	Reasoning    string   `json:"reasoning"`
}

// Credentials holds the effective credentials for one adapter instance.
// Key-based cloud providers need APIKey; local providers need Endpoint.
type Credentials struct {
	APIKey   string
	Endpoint string
}

// ProviderInfo combines static metadata with computed availability for
// display to callers.
type ProviderInfo struct {
	Metadata
	Models       []Model       `json:"models"`
	Capabilities Capabilities  `json:"capabilities"`
	Available    bool          `json:"available"`
	Latency      time.Duration `json:"latency,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Provider is the uniform contract implemented by each backend adapter.
// Adapters are cheap value objects constructed per request; they hold the
// resolved credentials for exactly one caller and are never shared.
type Provider interface {
	// Metadata returns the immutable provider description.
	Metadata() Metadata

	// Capabilities returns what the backend supports.
	Capabilities() Capabilities

	// Models returns the current model list. Static for most providers;
	// adapters with model discovery replace it after a successful health
	// check.
	Models() []Model

	// DefaultModel returns the model used when callers pass no model ID.
	DefaultModel() string

	// IsAvailable reports whether the adapter has sufficient credentials
	// to attempt a call. It performs no I/O.
	IsAvailable() bool

	// AnalyzePrompt asks the backend to critique the prompt and returns
	// the parsed structured result.
	AnalyzePrompt(ctx context.Context, prompt, modelID string) (*AnalysisResult, error)

	// OptimizePrompt asks the backend to rewrite the prompt using the
	// prior analysis as context.
	OptimizePrompt(ctx context.Context, prompt string, analysis *AnalysisResult, modelID string) (*OptimizedPrompt, error)

	// GeneratePreview returns a raw, unstructured completion for
	// side-by-side comparison.
	GeneratePreview(ctx context.Context, prompt, modelID string) (string, error)

	// HealthCheck makes a minimal call to confirm live connectivity.
	HealthCheck(ctx context.Context) HealthStatus
}

// resolveModel returns modelID if given, else the adapter's default. UI
// callers, comparison flows, and health checks all need a model ID but most
// only care about "use whatever's sensible".
func resolveModel(modelID, defaultModel string) string {
	if modelID != "" {
		return modelID
	}
	return defaultModel
}
