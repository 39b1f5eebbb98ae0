package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"easyprompt/internal/actions"
	"easyprompt/internal/auth"
	"easyprompt/internal/config"
	"easyprompt/internal/credentials"
	"easyprompt/internal/middleware"
	"easyprompt/internal/providers"
	"easyprompt/internal/ratelimit"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB          *storage.DB
	Redis       *redis.Client
	Auth        *auth.Service
	Credentials *credentials.Service
	Actions     *actions.Actions
	RateLimiter ratelimit.Limiter
}

// Close releases the connections held by the dependency graph.
func (d *Dependencies) Close() error {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	encryption, err := security.NewEncryption(cfg.EncryptionMasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	if err := encryption.Validate(); err != nil {
		return nil, nil, fmt.Errorf("encryption self-test failed: %w", err)
	}

	// Redis is optional; without it every request is allowed through.
	var redisClient *redis.Client
	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		limiter = ratelimit.NewRateLimiter(redisClient)
	}

	configRepo := storage.NewProviderConfigRepository(db)
	userRepo := storage.NewUserRepository(db)
	sessionRepo := storage.NewSessionRepository(db)

	logger := utils.NewLogger("easyprompt")

	credentialService := credentials.NewService(configRepo, encryption, logger)
	resolver := credentials.NewResolver(configRepo, encryption, logger)
	authService := auth.NewService(userRepo, sessionRepo, logger)

	factory := providers.NewFactory(resolver, providers.Options{
		RequestTimeout:     cfg.Provider.RequestTimeout,
		HealthCheckTimeout: cfg.Provider.HealthCheckTimeout,
	})

	actionLayer := actions.New(factory, actions.Options{
		MinPromptLength: cfg.Prompt.MinLength,
		MaxPromptLength: cfg.Prompt.MaxLength,
		DefaultProvider: providers.ProviderName(cfg.Provider.DefaultProvider),
	})

	deps := &Dependencies{
		DB:          db,
		Redis:       redisClient,
		Auth:        authService,
		Credentials: credentialService,
		Actions:     actionLayer,
		RateLimiter: limiter,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	requireSession := middleware.RequireSession(deps.Auth)
	optionalSession := middleware.OptionalSession(deps.Auth)
	rateLimit := middleware.RateLimit(deps.RateLimiter, cfg.RateLimit.RequestsPerMinute)

	// Health check endpoint - public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := deps.DB.Health(ctx); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth endpoints
	authHandler := NewAuthHandler(deps.Auth)
	mux.HandleFunc("POST /auth/signup", authHandler.SignUp)
	mux.HandleFunc("POST /auth/login", authHandler.LogIn)
	mux.HandleFunc("POST /auth/logout", authHandler.LogOut)
	mux.Handle("GET /auth/me", requireSession(http.HandlerFunc(authHandler.Me)))

	// Prompt pipeline - works anonymously, prefers per-user credentials,
	// rate limited per caller
	promptHandler := NewPromptHandler(deps.Actions)
	mux.Handle("POST /prompts/analyze", optionalSession(rateLimit(http.HandlerFunc(promptHandler.Analyze))))
	mux.Handle("POST /prompts/optimize", optionalSession(rateLimit(http.HandlerFunc(promptHandler.Optimize))))
	mux.Handle("POST /prompts/compare", optionalSession(rateLimit(http.HandlerFunc(promptHandler.Compare))))

	// Provider listing and health
	providersHandler := NewProvidersHandler(deps.Actions)
	mux.Handle("GET /providers", optionalSession(http.HandlerFunc(providersHandler.List)))
	mux.Handle("GET /providers/{name}/health", optionalSession(http.HandlerFunc(providersHandler.Health)))

	// Per-user provider credential management - always authenticated
	configsHandler := NewProviderConfigsHandler(deps.Credentials)
	mux.Handle("GET /provider-configs", requireSession(http.HandlerFunc(configsHandler.List)))
	mux.Handle("POST /provider-configs", requireSession(http.HandlerFunc(configsHandler.Save)))
	mux.Handle("PATCH /provider-configs/{id}", requireSession(http.HandlerFunc(configsHandler.Toggle)))
	mux.Handle("DELETE /provider-configs/{id}", requireSession(http.HandlerFunc(configsHandler.Delete)))
}
