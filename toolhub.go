// Package toolhub is the public API for embedding the toolhub portal server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := toolhub.New(
//	    toolhub.WithVersion(version),
//	    toolhub.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: toolhub (root) imports
// internal/*, but internal/* never imports toolhub (root).
package toolhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/psd401/toolhub/api"
	"github.com/psd401/toolhub/internal/auth"
	"github.com/psd401/toolhub/internal/config"
	"github.com/psd401/toolhub/internal/executor"
	"github.com/psd401/toolhub/internal/mcp"
	"github.com/psd401/toolhub/internal/ratelimit"
	"github.com/psd401/toolhub/internal/server"
	"github.com/psd401/toolhub/internal/storage"
	"github.com/psd401/toolhub/internal/telemetry"
	"github.com/psd401/toolhub/migrations"
)

// App is the toolhub server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	authLimiter  ratelimit.Limiter
	execLimiter  ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the toolhub server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("toolhub starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run embedded migrations.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Run extra migrations after the embedded set.
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	// Create JWT manager.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Model provider. An external override takes priority over config.
	var provider executor.ModelProvider
	if o.modelProvider != nil {
		provider = &providerAdapter{p: o.modelProvider}
	} else {
		provider, err = executor.NewProvider(cfg)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("model provider: %w", err)
		}
	}
	logger.Info("model provider", "provider", cfg.ModelProvider, "model", cfg.DefaultModelID())

	// Prompt-chain executor.
	exec := executor.New(db, provider, logger, cfg.MaxParallelRuns)

	// Rate limiters. Config values are per minute; the bucket refills at
	// that rate with an equal burst.
	var authLimiter, execLimiter ratelimit.Limiter
	if cfg.AuthRateLimit > 0 {
		authLimiter = ratelimit.NewMemoryLimiter(float64(cfg.AuthRateLimit)/60.0, cfg.AuthRateLimit)
	} else {
		authLimiter = ratelimit.NoopLimiter{}
	}
	if cfg.ExecutionRateLimit > 0 {
		execLimiter = ratelimit.NewMemoryLimiter(float64(cfg.ExecutionRateLimit)/60.0, cfg.ExecutionRateLimit)
	} else {
		execLimiter = ratelimit.NoopLimiter{}
	}

	// MCP server. The identity resolver reaches into the HTTP auth context
	// so MCP executions are attributed to the authenticated portal user.
	mcpSrv := mcp.New(db, exec, func(ctx context.Context) string {
		if claims := server.ClaimsFromContext(ctx); claims != nil {
			return claims.UserID
		}
		return ""
	}, logger)

	// Create HTTP server.
	srv := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		Executor:            exec,
		Provider:            provider,
		Logger:              logger,
		AuthLimiter:         authLimiter,
		ExecLimiter:         execLimiter,
		MCPServer:           mcpSrv.MCPServer(),
		OpenAPISpec:         api.OpenAPISpec,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		DefaultModelID:      cfg.DefaultModelID(),
		ModelTimeout:        cfg.ModelTimeout,
	})

	// Seed the initial administrator.
	if err := srv.Handlers().SeedAdmin(context.Background(), cfg.AdminAPIKey); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("admin seed: %w", err)
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		authLimiter:  authLimiter,
		execLimiter:  execLimiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically;
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the rate limiters,
// the database pool, and the OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("toolhub shutting down")

	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	_ = a.authLimiter.Close()
	_ = a.execLimiter.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("toolhub stopped")
	return nil
}

// Handler returns the root HTTP handler, for embedding in tests or another mux.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}
