package lambdafn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/artpar/code-explorer/internal/config"
	"github.com/artpar/code-explorer/internal/core/artifact"
	"github.com/artpar/code-explorer/internal/shell/cache"
	"github.com/artpar/code-explorer/internal/shell/costexplorer"
)

// CostReportSymbol is the symbol the cost report handler is registered under.
const CostReportSymbol = artifact.DefaultEntryPoint

// App holds the wired handlers and the resources they own.
type App struct {
	Registry *Registry

	// Cache is nil when the result cache is disabled or failed to open.
	Cache *cache.SQLiteCache

	closers []io.Closer
}

// Close releases resources opened by Setup.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Setup wires the Cost Explorer client, the optional cache and the handler
// registry from configuration. A cache that cannot be opened is logged and
// skipped.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Registry: NewRegistry()}

	var opts []costexplorer.Option
	if cfg.Cache.Enabled {
		c, err := cache.NewSQLiteCache(cfg.Cache.DSN, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("result cache disabled", "dsn", cfg.Cache.DSN, "error", err)
		} else {
			opts = append(opts, costexplorer.WithCache(c))
			app.Cache = c
			app.closers = append(app.closers, c)
			logger.Debug("result cache enabled", "dsn", cfg.Cache.DSN, "ttl", cfg.Cache.TTL)
		}
	}

	client, err := costexplorer.New(ctx, costexplorer.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Granularity:     cfg.Costs.Granularity,
		Metric:          cfg.Costs.Metric,
	}, logger, opts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create Cost Explorer client: %w", err)
	}

	report := NewCostReport(client, logger)
	if err := app.Registry.Register(CostReportSymbol, report.Handle); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}
