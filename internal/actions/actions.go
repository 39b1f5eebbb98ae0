// Package actions is the orchestration layer. It validates input, selects
// adapters through the factory, and folds downstream failures into uniform
// result and error envelopes for whatever surface sits above it.
package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"easyprompt/internal/providers"
	"easyprompt/internal/utils"
)

const (
	defaultMinPromptLength = 10
	defaultMaxPromptLength = 5000
)

// ProviderFactory is the subset of the provider factory the actions need.
type ProviderFactory interface {
	GetProvider(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.Provider, error)
	AvailableProviders(ctx context.Context, userID *uuid.UUID) []providers.ProviderInfo
	CheckHealth(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.HealthStatus, error)
}

// Options bounds prompt size and names the provider used when the caller
// does not pick one.
type Options struct {
	MinPromptLength int
	MaxPromptLength int
	DefaultProvider providers.ProviderName
}

// DefaultOptions returns the standard bounds with the local provider as the
// default backend.
func DefaultOptions() Options {
	return Options{
		MinPromptLength: defaultMinPromptLength,
		MaxPromptLength: defaultMaxPromptLength,
		DefaultProvider: providers.ProviderOllama,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MinPromptLength <= 0 {
		o.MinPromptLength = defaults.MinPromptLength
	}
	if o.MaxPromptLength <= 0 {
		o.MaxPromptLength = defaults.MaxPromptLength
	}
	if o.DefaultProvider == "" {
		o.DefaultProvider = defaults.DefaultProvider
	}
	return o
}

// OptimizationResult is the full envelope returned by Optimize: the rewrite
// plus everything needed to display and attribute it.
type OptimizationResult struct {
	OriginalPrompt  string                     `json:"original_prompt"`
	OptimizedPrompt string                     `json:"optimized_prompt"`
	Improvements    []string                   `json:"improvements"`
	Reasoning       string                     `json:"reasoning"`
	Analysis        *providers.AnalysisResult  `json:"analysis,omitempty"`
	Provider        providers.ProviderName     `json:"provider"`
	Model           string                     `json:"model"`
	Timestamp       string                     `json:"timestamp"`
}

// CompareEntry is one provider's outcome in a comparison: either a result
// or a captured error message, never both.
type CompareEntry struct {
	Result *OptimizationResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// PreviewEntry is one provider's outcome in a preview comparison.
type PreviewEntry struct {
	Preview string `json:"preview,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Actions exposes the public operation surface over the provider layer.
type Actions struct {
	factory ProviderFactory
	opts    Options
	logger  *utils.Logger
}

// New creates the action layer over a provider factory.
func New(factory ProviderFactory, opts Options) *Actions {
	return &Actions{
		factory: factory,
		opts:    opts.withDefaults(),
		logger:  utils.NewLogger("actions"),
	}
}

// validatePrompt enforces the length bounds on the trimmed prompt, counting
// characters rather than bytes. It runs before any credential resolution or
// network call.
func (a *Actions) validatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return &InvalidInputError{Message: "prompt is required"}
	}
	length := utf8.RuneCountInString(trimmed)
	if length < a.opts.MinPromptLength {
		return &InvalidInputError{
			Message: fmt.Sprintf("prompt must be at least %d characters", a.opts.MinPromptLength),
		}
	}
	if length > a.opts.MaxPromptLength {
		return &InvalidInputError{
			Message: fmt.Sprintf("prompt must be at most %d characters", a.opts.MaxPromptLength),
		}
	}
	return nil
}

// Analyze runs the analysis pipeline on one provider.
func (a *Actions) Analyze(ctx context.Context, prompt string, name providers.ProviderName, modelID string, userID *uuid.UUID) (*providers.AnalysisResult, error) {
	if err := a.validatePrompt(prompt); err != nil {
		return nil, err
	}
	return a.analyze(ctx, prompt, name, modelID, userID)
}

// analyze is Analyze without validation, for callers that already validated.
func (a *Actions) analyze(ctx context.Context, prompt string, name providers.ProviderName, modelID string, userID *uuid.UUID) (*providers.AnalysisResult, error) {
	provider, err := a.factory.GetProvider(ctx, name, userID)
	if err != nil {
		a.logger.Error("Failed to construct provider", "provider", name, "error", err)
		return nil, sanitize(name, err)
	}

	analysis, err := provider.AnalyzePrompt(ctx, prompt, modelID)
	if err != nil {
		a.logger.Error("Analysis failed", "provider", name, "error", err)
		return nil, sanitize(name, err)
	}

	return analysis, nil
}

// Optimize rewrites the prompt on one provider. When analysis is nil an
// analysis pass runs first on the same provider; validation applies once
// either way. An empty provider name selects the configured default.
func (a *Actions) Optimize(ctx context.Context, prompt string, analysis *providers.AnalysisResult, name providers.ProviderName, modelID string, userID *uuid.UUID) (*OptimizationResult, error) {
	if err := a.validatePrompt(prompt); err != nil {
		return nil, err
	}

	if name == "" {
		name = a.opts.DefaultProvider
	}

	if analysis == nil {
		var err error
		analysis, err = a.analyze(ctx, prompt, name, modelID, userID)
		if err != nil {
			return nil, err
		}
	}

	provider, err := a.factory.GetProvider(ctx, name, userID)
	if err != nil {
		a.logger.Error("Failed to construct provider", "provider", name, "error", err)
		return nil, sanitize(name, err)
	}

	optimized, err := provider.OptimizePrompt(ctx, prompt, analysis, modelID)
	if err != nil {
		a.logger.Error("Optimization failed", "provider", name, "error", err)
		return nil, sanitize(name, err)
	}

	model := modelID
	if model == "" {
		model = provider.DefaultModel()
	}

	return &OptimizationResult{
		OriginalPrompt:  prompt,
		OptimizedPrompt: optimized.Text,
		Improvements:    optimized.Improvements,
		Reasoning:       optimized.Reasoning,
		Analysis:        analysis,
		Provider:        name,
		Model:           model,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Compare fans Optimize out concurrently across the requested providers.
// The returned map always has exactly one entry per requested provider:
// a failure becomes that provider's Error entry and never disturbs the
// others.
func (a *Actions) Compare(ctx context.Context, prompt string, names []providers.ProviderName, userID *uuid.UUID) (map[providers.ProviderName]CompareEntry, error) {
	if err := a.validatePrompt(prompt); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &InvalidInputError{Message: "at least one provider is required"}
	}

	results := make(map[providers.ProviderName]CompareEntry, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name providers.ProviderName) {
			defer wg.Done()

			entry := CompareEntry{}
			result, err := a.Optimize(ctx, prompt, nil, name, "", userID)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Result = result
			}

			mu.Lock()
			results[name] = entry
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return results, nil
}

// ComparePreviews fans GeneratePreview out across the requested providers,
// with the same independent-partial-failure contract as Compare.
func (a *Actions) ComparePreviews(ctx context.Context, prompt string, names []providers.ProviderName, userID *uuid.UUID) (map[providers.ProviderName]PreviewEntry, error) {
	if err := a.validatePrompt(prompt); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &InvalidInputError{Message: "at least one provider is required"}
	}

	results := make(map[providers.ProviderName]PreviewEntry, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name providers.ProviderName) {
			defer wg.Done()

			entry := PreviewEntry{}
			provider, err := a.factory.GetProvider(ctx, name, userID)
			if err == nil {
				entry.Preview, err = provider.GeneratePreview(ctx, prompt, "")
			}
			if err != nil {
				a.logger.Error("Preview failed", "provider", name, "error", err)
				entry.Preview = ""
				entry.Error = sanitize(name, err).Error()
			}

			mu.Lock()
			results[name] = entry
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return results, nil
}

// Providers lists every supported provider with its live availability.
func (a *Actions) Providers(ctx context.Context, userID *uuid.UUID) []providers.ProviderInfo {
	return a.factory.AvailableProviders(ctx, userID)
}

// CheckHealth checks a single provider.
func (a *Actions) CheckHealth(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.HealthStatus, error) {
	if !providers.IsSupported(name) {
		return providers.HealthStatus{}, &InvalidInputError{Message: fmt.Sprintf("unknown provider %q", name)}
	}
	health, err := a.factory.CheckHealth(ctx, name, userID)
	if err != nil {
		a.logger.Error("Health check failed", "provider", name, "error", err)
		return providers.HealthStatus{}, sanitize(name, err)
	}
	return health, nil
}
