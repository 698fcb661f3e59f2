// Command api runs the HTTP API server for contract comparisons.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/claw-gang/amendment-diff/internal/api"
	"github.com/claw-gang/amendment-diff/internal/app"
	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	var opts []api.Option
	if a.History != nil {
		opts = append(opts, api.WithHistory(a.History))
	}
	if root := os.Getenv("API_DATA_ROOT"); root != "" {
		opts = append(opts, api.WithDataRoot(root))
	}

	oidcCfg := api.OIDCConfig{
		IssuerURL: cfg.OIDCIssuer,
		Audience:  cfg.OIDCAudience,
		Enabled:   cfg.OIDCEnabled(),
	}
	srv, err := api.New(a.Comparer, cfg.CORSOrigins, oidcCfg, opts...)
	if err != nil {
		logger.Error("api init failed", "error", err)
		os.Exit(1)
	}

	var handler http.Handler = srv
	if cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "amendment-diff-api")
	}

	addr := ":" + cfg.APIPort
	logger.Info("starting API server", "addr", addr, "mode", cfg.Mode, "oidc_enabled", oidcCfg.Enabled)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
