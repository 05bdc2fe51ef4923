// Package main provides the bootstrap binary of the code-explorer Lambda
// function. The Lambda base image runs it as the custom runtime and passes
// the handler symbol from the image CMD in _HANDLER.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/artpar/code-explorer/internal/config"
	"github.com/artpar/code-explorer/internal/shell/lambdafn"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitInitError   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := config.SetupLogger(cfg)
	symbol := lambdafn.HandlerName(os.Getenv("_HANDLER"), cfg.Handler.Name)
	logger = logger.With("handler", symbol)
	logger.Info("starting code-explorer", "version", Version, "build_time", BuildTime)

	ctx := context.Background()
	app, err := lambdafn.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return ExitInitError
	}
	defer app.Close()

	handler, err := app.Registry.Resolve(symbol)
	if err != nil {
		// Exiting before lambda.Start makes the platform report an init
		// error for every invocation routed to this instance.
		logger.Error("failed to resolve handler", "error", err)
		return ExitInitError
	}

	lambda.Start(handler)
	return ExitSuccess
}
