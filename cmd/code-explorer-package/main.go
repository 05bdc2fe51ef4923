// Package main provides code-explorer-package, which builds the Lambda
// container image described by deploy.yaml.
//
// Usage:
//
//	code-explorer-package [-manifest deploy.yaml] [-context .] [-config file] [-render-only]
//
// -render-only prints the generated Dockerfile without contacting Docker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/code-explorer/internal/config"
	"github.com/artpar/code-explorer/internal/core/artifact"
	"github.com/artpar/code-explorer/internal/shell/docker"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitBuildFailure = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("code-explorer-package", flag.ContinueOnError)
	fs.SetOutput(stderr)
	manifestPath := fs.String("manifest", "deploy.yaml", "Path to the deployment manifest")
	contextDir := fs.String("context", ".", "Build context directory")
	configPath := fs.String("config", "", "Path to config file")
	renderOnly := fs.Bool("render-only", false, "Print the Dockerfile and exit")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	a, err := loadArtifact(*manifestPath)
	if err != nil {
		fmt.Fprintf(stderr, "manifest error: %v\n", err)
		return ExitConfigError
	}

	if *renderOnly {
		dockerfile, err := artifact.RenderDockerfile(a)
		if err != nil {
			fmt.Fprintf(stderr, "manifest error: %v\n", err)
			return ExitConfigError
		}
		fmt.Fprint(stdout, dockerfile)
		return ExitSuccess
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := config.NewLogger(cfg.Log, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder, err := docker.NewBuilder(cfg.Docker.Host, logger, docker.WithOutput(stderr))
	if err != nil {
		logger.Error("failed to connect to docker", "error", err)
		return ExitBuildFailure
	}
	defer builder.Close()

	result, err := builder.Build(ctx, a, *contextDir)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalidArtifact) {
			logger.Error("invalid artifact", "error", err)
			return ExitConfigError
		}
		logger.Error("build failed", "tag", a.Tag, "error", err)
		return ExitBuildFailure
	}

	fmt.Fprintf(stdout, "%s %s\n", result.Tag, result.ImageID)
	return ExitSuccess
}

// loadArtifact reads the manifest, falling back to the default artifact
// when the default manifest path does not exist.
func loadArtifact(path string) (artifact.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == "deploy.yaml" {
			return artifact.Default(), nil
		}
		return artifact.Artifact{}, err
	}
	return artifact.ParseManifest(data)
}
