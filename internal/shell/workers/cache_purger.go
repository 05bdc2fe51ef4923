// Package workers runs background maintenance for long-lived processes.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes expired cache entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CachePurgerConfig configures the cache purge worker.
type CachePurgerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultCachePurgerConfig returns default configuration.
func DefaultCachePurgerConfig() CachePurgerConfig {
	return CachePurgerConfig{
		Interval: 10 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// CachePurger periodically drops expired result cache entries. Lambda
// instances purge on write; the dev server runs long enough to need this.
type CachePurger struct {
	purger Purger
	config CachePurgerConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCachePurger creates a new cache purge worker.
func NewCachePurger(p Purger, config CachePurgerConfig, logger *slog.Logger) *CachePurger {
	defaults := DefaultCachePurgerConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CachePurger{
		purger: p,
		config: config,
		logger: logger.With("component", "cache_purger"),
	}
}

// Start begins the purge goroutine.
func (c *CachePurger) Start() {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.run()
	c.logger.Info("cache purger started", "interval", c.config.Interval)
}

// Stop gracefully stops the purger.
func (c *CachePurger) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("cache purger stopped")
}

func (c *CachePurger) run() {
	defer c.wg.Done()

	c.runCycle()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.runCycle()
		}
	}
}

func (c *CachePurger) runCycle() {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	removed, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		c.logger.Error("failed to purge cache", "error", err)
		return
	}
	if removed > 0 {
		c.logger.Debug("purged expired cache entries", "count", removed)
	}
}
