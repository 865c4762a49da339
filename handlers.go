package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/adapter/llm"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/cms"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/observability"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/policy"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/prompt"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/repository"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/service"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills/content"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills/system"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills/templates"
	httpserver "github.com/doublesecretagency/craft-sidekick-sub000/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads the configuration and builds the logger.
func loadConfig(path string, debug bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newRegistry registers the built-in skills and the tool policy.
func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*skills.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env := skills.Env{
		HostVersion:       cfg.CMS.HostVersion,
		AllowAdminChanges: cfg.CMS.AllowAdminChanges,
		ServiceVersion:    service.Version,
	}

	var gateway cms.Gateway
	if cfg.Mode == config.ModeMock || cfg.CMS.BaseURL == "" {
		logger.Info("using in-memory content gateway")
		gateway = cms.NewMemory()
	} else {
		gateway = cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Token)
	}

	registry := skills.NewRegistry(logger, templates.New(cfg.TemplatesPath), system.New(env))
	registry.Register(content.Skills(gateway)...)

	engine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	registry.SetGate(engine)
	return registry, nil
}

func newService(ctx context.Context, cfg *config.Config, store repository.Store, client llm.AssistantClient, metrics *observability.Metrics, logger *slog.Logger) (*service.Service, error) {
	registry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc := service.New(store, client, registry, prompt.WithDir(cfg.PromptsPath), cfg, metrics, logger)
	if err := svc.Reload(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// runServe starts the HTTP server and the session sweeper and blocks until
// a shutdown signal.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, logger, err := loadConfig(configPath, debug)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(logger)

	logger.Info("starting sidekick",
		"version", service.Version,
		"mode", cfg.Mode,
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
	)

	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	svc, err := newService(ctx, cfg, store, llm.NewAssistantClient(cfg, logger), metrics, logger)
	if err != nil {
		return err
	}
	server := httpserver.NewServer(svc, cfg, reg, logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		svc.RunSessionSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down sidekick")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown http server gracefully", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("sidekick stopped")
	return nil
}

// runTools prints the tool catalog.
func runTools(ctx context.Context, configPath string, asJSON bool, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}
	registry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	svc := service.New(nil, nil, registry, nil, cfg, nil, logger)
	if err := svc.Reload(ctx); err != nil {
		return err
	}
	catalog := svc.Catalog()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.Descriptors())
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSKILL\tFUNCTION\tLENGTH")
	for _, d := range catalog.Descriptors() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", d.EncodedName, d.Skill, d.Function, len(d.EncodedName))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d tools, fingerprint %s\n", catalog.Len(), catalog.Fingerprint())
	return nil
}

// runPrompt prints the compiled system instructions.
func runPrompt(ctx context.Context, configPath string, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}
	registry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	svc := service.New(nil, nil, registry, prompt.WithDir(cfg.PromptsPath), cfg, nil, logger)
	if err := svc.Reload(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, svc.Instructions())
	return err
}
