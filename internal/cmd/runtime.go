package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/ailink"
	"github.com/writify/writify/internal/ailink/prompt"
	"github.com/writify/writify/internal/compose"
	"github.com/writify/writify/internal/config"
	"github.com/writify/writify/internal/core/store"
	"github.com/writify/writify/internal/export"
	"github.com/writify/writify/internal/fallback"
	"github.com/writify/writify/internal/gateway"
	"github.com/writify/writify/internal/metrics"
)

// runtimeOptions selects which parts of the stack buildRuntime wires.
type runtimeOptions struct {
	logger *logging.Logger
	// store opens and migrates the history database.
	store bool
	// offline latches the gateway before the first request.
	offline bool
	// metrics wires the telemetry recorders; only serve initializes telemetry.
	metrics bool
	// baseCtx bounds queued gateway requests.
	baseCtx context.Context
}

// appRuntime is the wired service stack shared by serve and the CLI commands.
type appRuntime struct {
	cfg      *config.Config
	store    *store.Store
	gateway  *gateway.Gateway
	service  *compose.Service
	offline  *fallback.Generator
	exporter *export.Exporter
	// providerErr is set when no AI provider could be resolved.
	providerErr error
}

func buildRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*appRuntime, error) {
	prompts, err := prompt.RegistryWithOverrides(cfg.AILink.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	providers := ailink.NewRegistry(cfg.AILink)
	offline := fallback.New()

	gwOpts := []gateway.Option{gateway.WithResponder(offline), gateway.WithLogger(opts.logger)}
	svcOpts := []compose.Option{compose.WithLogger(opts.logger)}
	if opts.metrics {
		gwOpts = append(gwOpts, gateway.WithRecorder(metrics.Gateway{}))
		svcOpts = append(svcOpts, compose.WithRecorder(metrics.Operations{}))
	}
	if opts.baseCtx != nil {
		gwOpts = append(gwOpts, gateway.WithBaseContext(opts.baseCtx))
	}

	gw := gateway.New(&ailink.Provider{Registry: providers, Role: ailink.DefaultRole}, cfg.Gateway.Policy(), gwOpts...)
	rt := &appRuntime{
		cfg:      cfg,
		gateway:  gw,
		service:  compose.New(gw, prompts, offline, svcOpts...),
		offline:  offline,
		exporter: export.New(cfg.Export.Dir),
	}

	if _, err := providers.Resolve(ailink.DefaultRole, ""); err != nil {
		rt.providerErr = err
		logWarn(opts.logger, "No AI provider available, serving offline content", zap.Error(err))
		gw.ActivateFallback()
	} else if opts.offline {
		gw.ActivateFallback()
	}

	if opts.store {
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		rt.store = db
		if err := rt.loadCustomTemplates(ctx, opts.logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return rt, nil
}

// loadCustomTemplates registers every stored template with the generator.
func (rt *appRuntime) loadCustomTemplates(ctx context.Context, logger *logging.Logger) error {
	stored, err := rt.store.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("load custom templates: %w", err)
	}
	for _, tpl := range stored {
		if _, err := rt.service.RegisterCustomTemplate(tpl); err != nil {
			logWarn(logger, "Skipping invalid custom template", zap.Int64("id", tpl.ID), zap.Error(err))
		}
	}
	return nil
}

func (rt *appRuntime) Close() error {
	if rt == nil || rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func logWarn(logger *logging.Logger, msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(msg, fields...)
	}
}
