package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/api"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/archive"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/cache"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/config"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/observability"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/publish"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/ratelimit"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/store"
)

const shutdownTimeout = 15 * time.Second

// runServeCmd runs the HTTP API. Everything except --port and --rules is
// read from the environment (see config.Load).
func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var port, rulesPath string
	cmd.StringVar(&port, "port", "", "Listen port (overrides PORT)")
	cmd.StringVar(&rulesPath, "rules", "", "Rule catalogue (overrides RULES_PATH)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if port != "" {
		cfg.Port = port
	}
	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		return 2
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	otel, err := observability.New(ctx, cfg.Observability(version))
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = otel.Shutdown(sctx)
	}()

	newEngine := func(cat *rules.Catalogue) (*engine.Engine, error) {
		return engine.New(cat,
			engine.WithLogger(logger),
			engine.WithTracker(otel),
			engine.WithParallelism(cfg.Parallelism),
		)
	}

	cat, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return err
	}
	e, err := newEngine(cat)
	if err != nil {
		return err
	}
	logUnimplemented(logger, e)

	metrics := api.NewMetrics()
	opts := []api.Option{api.WithLogger(logger), api.WithMetrics(metrics)}

	reports, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	if reports != nil {
		defer func() { _ = reports.Close() }()
		opts = append(opts, api.WithStore(reports))
	} else {
		logger.Warn("no report store configured; reports are not retained")
	}

	policy := ratelimit.Policy{RPM: cfg.RateLimitRPM, Burst: cfg.RateLimitBurst}
	var limiter ratelimit.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, api.WithCache(cache.New(rdb, cfg.CacheTTL)))
		limiter = ratelimit.NewRedisStore(rdb)
	} else if cfg.RateLimitRPM > 0 {
		mem := ratelimit.NewMemoryStore(nil)
		go mem.PruneEvery(ctx, time.Minute, 10*time.Minute)
		limiter = mem
	}
	if cfg.RateLimitRPM > 0 {
		opts = append(opts, api.WithRateLimit(limiter, policy))
	}

	arch, err := archive.NewStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	if arch != nil {
		opts = append(opts, api.WithArchive(arch))
	}

	if cfg.NATSURL != "" {
		pub, err := publish.Connect(ctx, cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, api.WithPublisher(pub))
	}

	srv := api.New(e, opts...)

	if cfg.WatchRules {
		w, err := rules.NewWatcher(cfg.RulesPath, cat, func(c *rules.Catalogue) error {
			next, err := newEngine(c)
			if err != nil {
				return err
			}
			logUnimplemented(logger, next)
			srv.SetEngine(next)
			return nil
		}, logger)
		if err != nil {
			return fmt.Errorf("watch rules: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch rules: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "rules_version", cat.Version, "rules_digest", cat.Digest())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

// logUnimplemented warns about enabled rules with no registered check. They
// still run, each reporting a failed WARNING finding.
func logUnimplemented(logger *slog.Logger, e *engine.Engine) {
	if missing := e.Unimplemented(); len(missing) > 0 {
		logger.Warn("enabled rules without checks report as unimplemented", "rule_ids", missing, "severity", "WARNING")
	}
}
