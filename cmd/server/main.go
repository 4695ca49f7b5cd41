package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/janisto/huma-webapi-bench/internal/http/health"
	"github.com/janisto/huma-webapi-bench/internal/http/v1/routes"
	"github.com/janisto/huma-webapi-bench/internal/platform/config"
	applog "github.com/janisto/huma-webapi-bench/internal/platform/logging"
	"github.com/janisto/huma-webapi-bench/internal/platform/metrics"
	appmiddleware "github.com/janisto/huma-webapi-bench/internal/platform/middleware"
	"github.com/janisto/huma-webapi-bench/internal/platform/respond"
	"github.com/janisto/huma-webapi-bench/internal/platform/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}
	if err := run(); err != nil {
		applog.LogError(context.Background(), "server failed", err)
		_ = applog.Sync()
		os.Exit(1)
	}
	if err := applog.Sync(); err != nil {
		applog.LogError(context.Background(), "logger sync error", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	servers := []*server.Server{server.New(cfg.Addr(), newRouter(cfg, m))}
	if cfg.MetricsAddr != "" {
		servers = append(servers, server.New(cfg.MetricsAddr, newAdminRouter(m)))
	}

	// Bind everything before serving anything so a port conflict exits without a half-started process.
	for i, srv := range servers {
		if err := srv.Listen(ctx); err != nil {
			for _, bound := range servers[:i] {
				_ = bound.Shutdown(context.Background())
			}
			return err
		}
		applog.LogInfo(ctx, "server listening", zap.String("addr", srv.Addr()))
	}

	return serve(ctx, cfg.ShutdownTimeout, servers...)
}

// serve runs the bound servers until ctx is cancelled or one of them fails, then shuts all of them
// down within timeout.
func serve(ctx context.Context, timeout time.Duration, servers ...*server.Server) error {
	serveErr := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.Serve(); err != nil {
				serveErr <- errors.Wrapf(err, "server %s", srv.Addr())
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			applog.LogError(shutdownCtx, "server shutdown error", err, zap.String("addr", srv.Addr()))
		}
	}
	applog.LogInfo(context.Background(), "server exited")
	return runErr
}

func newRouter(cfg config.Config, m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Docs pages load inline scripts that the CSP would block.
	var securitySkip []string
	if cfg.APIDocs {
		securitySkip = append(securitySkip, "/docs")
	}

	// Base middleware stack
	router.Use(
		appmiddleware.Security(securitySkip...),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP extracts client IP from X-Real-IP or X-Forwarded-For headers.
		// SECURITY: Only use behind a trusted reverse proxy (e.g., Cloud Run, nginx).
		// Without a trusted proxy, clients can spoof their IP address.
		chimiddleware.RealIP,
		// RequestSize limits request body size to prevent memory exhaustion from large payloads.
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		// GetHead answers HEAD on GET routes, matching the methods CORS advertises.
		chimiddleware.GetHead,
		m.Middleware(),
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	humaCfg := huma.DefaultConfig("JSON Benchmark API", Version)
	// The default create hook adds a $schema property to every body; responses carry only their own fields.
	humaCfg.CreateHooks = nil
	if !cfg.APIDocs {
		humaCfg.OpenAPIPath = ""
		humaCfg.DocsPath = ""
		humaCfg.SchemasPath = ""
	}
	// Huma falls back to JSON for wildcard or unsupported Accept values (e.g., */*, text/plain)
	// instead of answering 406, which RFC 9110 section 12.4.1 permits.
	api := humachi.New(router, humaCfg)
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation, addCBORContent)

	routes.Register(api)
	return router
}

// addCBORContent advertises application/cbor next to every application/json body in the OpenAPI document.
func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}

// newAdminRouter serves operational endpoints on a listener separate from the API.
func newAdminRouter(m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())
	router.Use(respond.Recoverer())
	router.Get("/health", health.Handler)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	return router
}
