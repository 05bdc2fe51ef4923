// Package main provides code-explorer-dev, a local harness for the Lambda
// handlers.
//
// Usage:
//
//	code-explorer-dev serve  [-config file] [-handler symbol]
//	code-explorer-dev invoke [-config file] [-handler symbol] [-event file]
//
// serve emulates the API Gateway proxy integration on server.host:server.port.
// invoke runs one event (YAML or JSON, empty when -event is omitted) and
// prints the response body.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"

	"github.com/artpar/code-explorer/internal/config"
	"github.com/artpar/code-explorer/internal/shell/devserver"
	"github.com/artpar/code-explorer/internal/shell/lambdafn"
	"github.com/artpar/code-explorer/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitInitError    = 2
	ExitRuntimeError = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: code-explorer-dev <serve|invoke> [flags]")
		return ExitConfigError
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet("code-explorer-dev "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	symbol := fs.String("handler", "", "Handler symbol (defaults to handler.name)")
	eventPath := fs.String("event", "", "Event file for invoke (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := config.NewLogger(cfg.Log, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := lambdafn.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return ExitInitError
	}
	defer app.Close()

	name := lambdafn.HandlerName(*symbol, cfg.Handler.Name)
	handler, err := app.Registry.Resolve(name)
	if err != nil {
		logger.Error("failed to resolve handler", "error", err)
		return ExitInitError
	}

	switch cmd {
	case "serve":
		return serve(ctx, cfg, app, name, handler, logger)
	case "invoke":
		return invoke(ctx, *eventPath, handler, stdout, logger)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return ExitConfigError
	}
}

func serve(ctx context.Context, cfg *config.Config, app *lambdafn.App, name string, handler lambdafn.HandlerFunc, logger *slog.Logger) int {
	if app.Cache != nil {
		purger := workers.NewCachePurger(app.Cache, workers.CachePurgerConfig{Interval: cfg.Cache.PurgeInterval}, logger)
		purger.Start()
		defer purger.Stop()
	}

	server := devserver.New(cfg.Server, name, handler, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		return ExitRuntimeError
	}
	return ExitSuccess
}

func invoke(ctx context.Context, eventPath string, handler lambdafn.HandlerFunc, stdout io.Writer, logger *slog.Logger) int {
	var req events.APIGatewayProxyRequest
	if eventPath != "" {
		var err error
		if req, err = devserver.LoadEvent(eventPath); err != nil {
			logger.Error("failed to load event", "path", eventPath, "error", err)
			return ExitConfigError
		}
	}

	resp, err := handler(ctx, req)
	if err != nil {
		logger.Error("handler returned error", "error", err)
		return ExitRuntimeError
	}

	logger.Info("invocation complete", "status", resp.StatusCode)
	fmt.Fprintln(stdout, resp.Body)
	return ExitSuccess
}
