// Command brokerd runs the service-token broker: it exchanges a long-lived
// service-account credential for short-lived bearer tokens, caches the live
// token encrypted in memory, rate-limits issuance per caller and audits
// every lifecycle event.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sufield/tokenbroker/internal/adapters/outbound/credfile"
	"github.com/sufield/tokenbroker/internal/adapters/outbound/imsclient"
	"github.com/sufield/tokenbroker/internal/adapters/outbound/sealedcache"
	"github.com/sufield/tokenbroker/internal/app"
	"github.com/sufield/tokenbroker/internal/audit"
	"github.com/sufield/tokenbroker/internal/config"
	"github.com/sufield/tokenbroker/internal/metrics"
	"github.com/sufield/tokenbroker/internal/ratelimit"
	"github.com/sufield/tokenbroker/internal/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the yaml config file (optional; BROKER_* env vars override)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("broker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.WallClock

	cache, err := sealedcache.New(cacheSecret(cfg, logger), cfg.Cache.SafetyMargin, clk)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sink := audit.New(logger.With("component", "audit"), logger)

	broker := app.New(app.Params{
		Source:         credfile.New(cfg.Provider),
		Exchanger:      imsclient.New(cfg.Exchange.Timeout, cfg.Exchange.AssertionTTL, clk),
		Cache:          cache,
		Audit:          sink,
		Clock:          clk,
		Logger:         logger,
		Metrics:        metrics.New(reg, cache.Size),
		IssueLimiter:   ratelimit.New(cfg.RateLimit.Issue.Window, cfg.RateLimit.Issue.Limit, clk),
		AdminLimiter:   ratelimit.New(cfg.RateLimit.Admin.Window, cfg.RateLimit.Admin.Limit, clk),
		CacheKeyPrefix: cfg.Cache.KeyPrefix,
		CacheWindow:    cfg.Cache.Window,
	})

	srv := server.New(cfg, broker, sink, reg, clk, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cacheSecret returns the sealing key material. Outside production an unset
// secret falls back to a derivation seed built from the client secret; the
// fallback is deterministic and therefore not safe for production, which is
// why config validation refuses it there.
func cacheSecret(cfg config.Config, logger *slog.Logger) []byte {
	if cfg.Cache.Secret != "" {
		return []byte(cfg.Cache.Secret)
	}

	logger.Warn("BROKER_CACHE_SECRET is not set; deriving the cache sealing key from the client secret. Do not use this fallback in production.")
	if cfg.Provider.ClientSecret != "" {
		return []byte("fallback:" + cfg.Provider.ClientSecret)
	}
	return []byte("tokenbroker-insecure-dev-secret")
}
