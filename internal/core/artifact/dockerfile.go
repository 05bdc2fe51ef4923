package artifact

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// BuildTags are the Go build tags used for the bootstrap binary. The SQLite
// driver is linked statically so the binary does not depend on the base
// image's libc.
const BuildTags = "sqlite_omit_load_extension netgo osusergo"

// BootstrapPath is where the Lambda base image looks for a custom runtime.
const BootstrapPath = "${LAMBDA_RUNTIME_DIR}/bootstrap"

// ContextExcludes lists build context paths never sent to the daemon.
func ContextExcludes() []string {
	return []string{".git", "bin", "dist", "*.db"}
}

// RenderDockerfile produces the two-stage Dockerfile for an artifact.
//
// The build stage resolves the dependency manifest (go mod download) before
// compiling, so an unresolvable dependency fails the build before any image
// is produced. The final stage places the binary where the base image
// expects a custom runtime and records the entry point as CMD; the base
// image exposes it to the binary as _HANDLER.
//
// Rendering is deterministic: the same artifact always yields the same text.
func RenderDockerfile(a Artifact) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	cmd, err := json.Marshal([]string{a.EntryPoint})
	if err != nil {
		return "", fmt.Errorf("failed to encode entry point: %w", err)
	}

	moduleDir := path.Join("/src", a.ModuleDir())
	source := "./" + strings.TrimPrefix(path.Clean(a.Source), "./")

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s AS build\n", a.BuilderImage)
	b.WriteString("WORKDIR /src\n")
	b.WriteString("COPY . .\n")
	fmt.Fprintf(&b, "WORKDIR %s\n", moduleDir)
	b.WriteString("RUN go mod download\n")
	fmt.Fprintf(&b,
		"RUN CGO_ENABLED=1 go build -trimpath -tags %q -ldflags '-s -w -linkmode external -extldflags \"-static\"' -o /out/bootstrap %s\n",
		BuildTags, source)
	b.WriteString("\n")
	fmt.Fprintf(&b, "FROM %s\n", a.BaseImage)
	fmt.Fprintf(&b, "LABEL code-explorer.function=%q code-explorer.entry-point=%q\n", a.Name, a.EntryPoint)
	fmt.Fprintf(&b, "COPY --from=build /out/bootstrap %s\n", BootstrapPath)
	fmt.Fprintf(&b, "CMD %s\n", cmd)

	return b.String(), nil
}
