package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"easyprompt/internal/utils"
)

// Options carries the per-call timeout bounds for adapters.
type Options struct {
	RequestTimeout     time.Duration
	HealthCheckTimeout time.Duration
}

// DefaultOptions returns the default adapter timeouts.
func DefaultOptions() Options {
	return Options{
		RequestTimeout:     30 * time.Second,
		HealthCheckTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaults.RequestTimeout
	}
	if o.HealthCheckTimeout <= 0 {
		o.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	return o
}

// New constructs a configured adapter for the given provider name. It is
// pure construction with no I/O. An unknown name is a configuration error,
// reported as UnavailableError.
func New(name ProviderName, creds Credentials) (Provider, error) {
	return NewWithOptions(name, creds, DefaultOptions())
}

// NewWithOptions is New with explicit timeout options.
func NewWithOptions(name ProviderName, creds Credentials, opts Options) (Provider, error) {
	opts = opts.withDefaults()

	switch name {
	case ProviderAnthropic:
		return newAnthropic(creds, opts), nil
	case ProviderOpenAI:
		return newOpenAI(creds, opts), nil
	case ProviderGoogle:
		return newGoogle(creds, opts), nil
	case ProviderKimi:
		return newKimi(creds, opts), nil
	case ProviderOllama:
		return newOllama(creds, opts)
	default:
		return nil, &UnavailableError{Provider: name, Message: fmt.Sprintf("provider %q is not supported", name)}
	}
}

// CredentialSource resolves effective credentials for a provider, preferring
// the user's stored configuration and falling back to process-wide defaults.
// Implemented by credentials.Resolver.
type CredentialSource interface {
	Resolve(ctx context.Context, name ProviderName, userID *uuid.UUID) (Credentials, error)
}

// Factory builds adapter instances with resolved credentials. Instances are
// never cached or shared: credentials may differ per request and per user,
// so every call constructs a fresh adapter.
type Factory struct {
	creds  CredentialSource
	opts   Options
	logger *utils.Logger
}

// NewFactory creates a factory over the given credential source.
func NewFactory(creds CredentialSource, opts Options) *Factory {
	return &Factory{
		creds:  creds,
		opts:   opts.withDefaults(),
		logger: utils.NewLogger("providers", utils.Info),
	}
}

// GetProvider resolves credentials for (name, userID) and constructs a fresh
// adapter.
func (f *Factory) GetProvider(ctx context.Context, name ProviderName, userID *uuid.UUID) (Provider, error) {
	creds, err := f.creds.Resolve(ctx, name, userID)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(name, creds, f.opts)
}

// AvailableProviders returns one ProviderInfo per supported provider, in the
// fixed enumeration order, regardless of individual failures. Providers with
// credentials get a live health check; a failing provider becomes an
// unavailable entry with its error string, never an aborted aggregation.
func (f *Factory) AvailableProviders(ctx context.Context, userID *uuid.UUID) []ProviderInfo {
	names := SupportedProviders()
	infos := make([]ProviderInfo, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name ProviderName) {
			defer wg.Done()
			infos[i] = f.providerInfo(ctx, name, userID)
		}(i, name)
	}
	wg.Wait()

	return infos
}

func (f *Factory) providerInfo(ctx context.Context, name ProviderName, userID *uuid.UUID) ProviderInfo {
	provider, err := f.GetProvider(ctx, name, userID)
	if err != nil {
		f.logger.Warn("failed to construct provider", "provider", name, "error", err)

		// Fall back to an unconfigured instance so the entry still
		// carries metadata, models, and capabilities for display.
		provider, err = NewWithOptions(name, Credentials{}, f.opts)
		if err != nil {
			return ProviderInfo{
				Metadata:  Metadata{Name: name},
				Available: false,
				Error:     err.Error(),
			}
		}

		return f.describe(provider, false, HealthStatus{})
	}

	if !provider.IsAvailable() {
		return f.describe(provider, false, HealthStatus{})
	}

	health := provider.HealthCheck(ctx)
	if health.Error != "" {
		f.logger.Warn("health check failed", "provider", name, "error", health.Error)
	}

	return f.describe(provider, health.Available, health)
}

func (f *Factory) describe(provider Provider, available bool, health HealthStatus) ProviderInfo {
	return ProviderInfo{
		Metadata:     provider.Metadata(),
		Models:       provider.Models(),
		Capabilities: provider.Capabilities(),
		Available:    available,
		Latency:      health.Latency,
		Error:        health.Error,
	}
}

// CheckHealth runs a health check for a single provider with the caller's
// credentials.
func (f *Factory) CheckHealth(ctx context.Context, name ProviderName, userID *uuid.UUID) (HealthStatus, error) {
	provider, err := f.GetProvider(ctx, name, userID)
	if err != nil {
		return HealthStatus{}, err
	}
	if !provider.IsAvailable() {
		return HealthStatus{Available: false, Error: "provider is not configured"}, nil
	}
	return provider.HealthCheck(ctx), nil
}
