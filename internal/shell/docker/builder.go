// Package docker builds the Lambda container image with the Docker SDK.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/artpar/code-explorer/internal/core/artifact"
)

// imageAPI is the subset of the Docker SDK client used by Builder.
type imageAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error)
	Close() error
}

// BuildResult describes a successfully built image.
type BuildResult struct {
	ImageID    string
	Tag        string
	Dockerfile string
}

// =============================================================================
// Builder
// =============================================================================

// Builder packages an artifact into a container image.
type Builder struct {
	api    imageAPI
	out    io.Writer
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithOutput streams build progress to w.
func WithOutput(w io.Writer) BuilderOption {
	return func(b *Builder) {
		b.out = w
	}
}

// NewBuilder creates a Builder connected to the Docker daemon.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewBuilder(host string, logger *slog.Logger, opts ...BuilderOption) (*Builder, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, NewDockerError("NewBuilder", "", "", "failed to create client", ErrConnectionFailed)
	}

	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil && host == "" {
		homeDir, _ := os.UserHomeDir()
		desktop, err2 := client.NewClientWithOpts(
			client.WithHost("unix://"+homeDir+"/.docker/run/docker.sock"),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := desktop.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return newBuilder(desktop, logger, opts...), nil
			}
			desktop.Close()
		}
		cli.Close()
		return nil, NewDockerError("NewBuilder", "", "", fmt.Sprintf("failed to ping docker: %v", pingErr), ErrConnectionFailed)
	}

	return newBuilder(cli, logger, opts...), nil
}

func newBuilder(api imageAPI, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		api:    api,
		out:    io.Discard,
		logger: logger.With("component", "image_builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close closes the Docker client connection.
func (b *Builder) Close() error {
	return b.api.Close()
}

// Build renders the artifact's Dockerfile into contextDir, sends the context
// to the daemon and tags the result. The rendered Dockerfile is removed from
// contextDir before Build returns, whether or not the build succeeded.
//
// A dependency that cannot be resolved fails the build stage; the daemon's
// error is returned wrapped in ErrBuildFailed and no image is tagged. After a
// successful build the image's CMD is checked against the entry point.
func (b *Builder) Build(ctx context.Context, a artifact.Artifact, contextDir string) (*BuildResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(contextDir, filepath.FromSlash(a.Manifest))
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, NewDockerError("Build", "manifest", a.Manifest, err.Error(), ErrManifestMissing)
	}

	dockerfile, err := artifact.RenderDockerfile(a)
	if err != nil {
		return nil, err
	}
	dockerfilePath := filepath.Join(contextDir, artifact.DockerfileName)
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifact.DockerfileName, err)
	}
	// Runs after the context stream below is closed.
	defer func() {
		if err := os.Remove(dockerfilePath); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("failed to remove rendered dockerfile", "path", dockerfilePath, "error", err)
		}
	}()

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: artifact.ContextExcludes(),
	})
	if err != nil {
		return nil, NewDockerError("Build", "context", contextDir, err.Error(), ErrBuildFailed)
	}
	defer buildContext.Close()

	b.logger.Info("building image", "tag", a.Tag, "base_image", a.BaseImage, "entry_point", a.EntryPoint)

	resp, err := b.api.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        []string{a.Tag},
		Dockerfile:  artifact.DockerfileName,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, NewDockerError("Build", "image", a.Tag, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	var imageID string
	captureID := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var aux struct {
			ID string `json:"ID"`
		}
		if json.Unmarshal(*msg.Aux, &aux) == nil && aux.ID != "" {
			imageID = aux.ID
		}
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, b.out, 0, false, captureID); err != nil {
		b.logger.Error("image build failed", "tag", a.Tag, "error", err)
		return nil, NewDockerError("Build", "image", a.Tag, err.Error(), ErrBuildFailed)
	}

	ref := imageID
	if ref == "" {
		ref = a.Tag
	}
	inspected, err := b.inspect(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(inspected.Config.Cmd, []string{a.EntryPoint}) {
		return nil, NewDockerError("Build", "image", a.Tag,
			fmt.Sprintf("CMD is %q, want [%q]", inspected.Config.Cmd, a.EntryPoint), ErrEntryPointMismatch)
	}
	if inspected.ID != "" {
		imageID = inspected.ID
	}

	b.logger.Info("image built", "tag", a.Tag, "image_id", imageID)
	return &BuildResult{ImageID: imageID, Tag: a.Tag, Dockerfile: dockerfile}, nil
}

// inspectedImage holds the fields read back from the daemon after a build.
type inspectedImage struct {
	ID     string `json:"Id"`
	Config struct {
		Cmd []string `json:"Cmd"`
	} `json:"Config"`
}

func (b *Builder) inspect(ctx context.Context, ref string) (*inspectedImage, error) {
	_, raw, err := b.api.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("Inspect", "image", ref, "image not found", ErrImageNotFound)
		}
		return nil, NewDockerError("Inspect", "image", ref, err.Error(), err)
	}

	var out inspectedImage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewDockerError("Inspect", "image", ref, "failed to decode inspect response", errors.Join(ErrBuildFailed, err))
	}
	return &out, nil
}
