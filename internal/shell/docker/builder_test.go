package docker

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/code-explorer/internal/core/artifact"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeImageAPI struct {
	stream     string
	buildErr   error
	inspectRaw string

	options      []types.ImageBuildOptions
	contextFiles map[string]string
	inspected    []string
}

func (f *fakeImageAPI) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.options = append(f.options, options)
	f.contextFiles = map[string]string{}

	tr := tar.NewReader(buildContext)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.ImageBuildResponse{}, err
		}
		body, _ := io.ReadAll(tr)
		f.contextFiles[hdr.Name] = string(body)
	}

	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func (f *fakeImageAPI) ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error) {
	f.inspected = append(f.inspected, imageID)
	return image.InspectResponse{}, []byte(f.inspectRaw), nil
}

func (f *fakeImageAPI) Close() error { return nil }

const successStream = `{"stream":"Step 1/9 : FROM golang:1.24-bookworm AS build\n"}
{"stream":" ---> 1a2b3c\n"}
{"aux":{"ID":"sha256:feedface"}}
{"stream":"Successfully tagged code-explorer:latest\n"}
`

const entryPointInspect = `{"Id":"sha256:feedface","Config":{"Cmd":["code_explorer.lambda_handler"]}}`

// writeContext lays out a minimal module in a temp directory.
func writeContext(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":                    "module example.com/fn\n\ngo 1.24\n",
		"cmd/code-explorer/main.go": "package main\n\nfunc main() {}\n",
		".git/HEAD":                 "ref: refs/heads/main\n",
		"cache.db":                  "sqlite",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// =============================================================================
// Build Tests
// =============================================================================

func TestBuild_Success(t *testing.T) {
	api := &fakeImageAPI{stream: successStream, inspectRaw: entryPointInspect}
	var progress strings.Builder
	b := newBuilder(api, nil, WithOutput(&progress))
	dir := writeContext(t)

	result, err := b.Build(context.Background(), artifact.Default(), dir)
	require.NoError(t, err)

	assert.Equal(t, "sha256:feedface", result.ImageID)
	assert.Equal(t, "code-explorer:latest", result.Tag)
	assert.Contains(t, result.Dockerfile, `CMD ["code_explorer.lambda_handler"]`)
	assert.Contains(t, progress.String(), "Successfully tagged code-explorer:latest")

	require.Len(t, api.options, 1)
	assert.Equal(t, []string{"code-explorer:latest"}, api.options[0].Tags)
	assert.Equal(t, artifact.DockerfileName, api.options[0].Dockerfile)
	assert.True(t, api.options[0].Remove)

	assert.Equal(t, []string{"sha256:feedface"}, api.inspected)
}

func TestBuild_ContextContents(t *testing.T) {
	api := &fakeImageAPI{stream: successStream, inspectRaw: entryPointInspect}
	dir := writeContext(t)

	_, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), dir)
	require.NoError(t, err)

	assert.Contains(t, api.contextFiles, "go.mod")
	assert.Contains(t, api.contextFiles, "cmd/code-explorer/main.go")
	assert.Contains(t, api.contextFiles, artifact.DockerfileName)
	assert.NotContains(t, api.contextFiles, ".git/HEAD")
	assert.NotContains(t, api.contextFiles, "cache.db")

	rendered, err := artifact.RenderDockerfile(artifact.Default())
	require.NoError(t, err)
	assert.Equal(t, rendered, api.contextFiles[artifact.DockerfileName])

	_, err = os.Stat(filepath.Join(dir, artifact.DockerfileName))
	assert.True(t, os.IsNotExist(err), "rendered Dockerfile is removed from the context dir")
}

// A dependency that cannot be resolved fails during the build stage and no
// image is inspected or reported.
func TestBuild_UnresolvableDependencyFails(t *testing.T) {
	api := &fakeImageAPI{
		stream: `{"stream":"Step 5/9 : RUN go mod download\n"}
{"errorDetail":{"message":"go: example.com/doesnotexist123@v0.0.1: unrecognized import path"},"error":"go: example.com/doesnotexist123@v0.0.1: unrecognized import path"}
`,
	}
	dir := writeContext(t)

	result, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), dir)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrBuildFailed))
	assert.Contains(t, err.Error(), "doesnotexist123")
	assert.Empty(t, api.inspected)

	_, err = os.Stat(filepath.Join(dir, artifact.DockerfileName))
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_DaemonError(t *testing.T) {
	api := &fakeImageAPI{buildErr: errors.New("Cannot connect to the Docker daemon")}
	dir := writeContext(t)

	_, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), dir)
	assert.ErrorIs(t, err, ErrBuildFailed)

	_, err = os.Stat(filepath.Join(dir, artifact.DockerfileName))
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_MissingManifest(t *testing.T) {
	api := &fakeImageAPI{}
	dir := t.TempDir()

	_, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), dir)
	assert.ErrorIs(t, err, ErrManifestMissing)
	assert.Empty(t, api.options)
}

func TestBuild_InvalidArtifact(t *testing.T) {
	a := artifact.Default()
	a.EntryPoint = "lambda_handler"

	_, err := newBuilder(&fakeImageAPI{}, nil).Build(context.Background(), a, writeContext(t))
	assert.ErrorIs(t, err, artifact.ErrInvalidArtifact)
}

func TestBuild_EntryPointMismatch(t *testing.T) {
	api := &fakeImageAPI{
		stream:     successStream,
		inspectRaw: `{"Id":"sha256:feedface","Config":{"Cmd":["other.handler"]}}`,
	}

	_, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), writeContext(t))
	assert.ErrorIs(t, err, ErrEntryPointMismatch)
}

func TestBuild_FallsBackToTagWithoutAuxID(t *testing.T) {
	api := &fakeImageAPI{
		stream:     `{"stream":"Successfully built\n"}` + "\n",
		inspectRaw: entryPointInspect,
	}

	result, err := newBuilder(api, nil).Build(context.Background(), artifact.Default(), writeContext(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"code-explorer:latest"}, api.inspected)
	assert.Equal(t, "sha256:feedface", result.ImageID)
}

func TestDockerError_Format(t *testing.T) {
	err := NewDockerError("Build", "image", "fn:latest", "boom", ErrBuildFailed)
	assert.Equal(t, "Build image fn:latest: boom", err.Error())
	assert.ErrorIs(t, err, ErrBuildFailed)

	assert.Equal(t, "Build: boom", NewDockerError("Build", "", "", "boom", nil).Error())
}
