// Package artifact describes the Lambda deployment artifact: the base image,
// the dependency manifest, the source package and the handler entry point.
// All functions are pure; building the image is done by internal/shell/docker.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultName is the function name used when none is configured.
	DefaultName = "code-explorer"

	// DefaultBaseImage is the Lambda base image for custom runtimes.
	DefaultBaseImage = "public.ecr.aws/lambda/provided:al2023"

	// DefaultBuilderImage compiles the bootstrap binary.
	DefaultBuilderImage = "golang:1.24-bookworm"

	// DefaultManifest is the dependency manifest resolved at build time.
	DefaultManifest = "go.mod"

	// DefaultSource is the main package compiled into the bootstrap binary.
	DefaultSource = "./cmd/code-explorer"

	// DefaultEntryPoint is the handler symbol invoked by the platform.
	DefaultEntryPoint = "code_explorer.lambda_handler"

	// DockerfileName is the generated Dockerfile written into the build context.
	DockerfileName = "Dockerfile.lambda"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidArtifact is returned when an artifact description is incomplete or malformed.
	ErrInvalidArtifact = errors.New("invalid artifact")

	// ErrInvalidEntryPoint is returned when an entry point is not <module>.<symbol>.
	ErrInvalidEntryPoint = errors.New("invalid entry point")
)

// =============================================================================
// Artifact
// =============================================================================

// Artifact describes one deployment unit. It is created from deploy.yaml and
// is immutable once an image has been built from it.
type Artifact struct {
	// Name is the function name, used for labels and the default tag.
	Name string `yaml:"name"`

	// BaseImage is the runtime image of the final stage.
	BaseImage string `yaml:"base_image"`

	// BuilderImage is the toolchain image of the build stage.
	BuilderImage string `yaml:"builder_image"`

	// Manifest is the dependency manifest path, relative to the build context.
	Manifest string `yaml:"manifest"`

	// Source is the main package, relative to the manifest's directory.
	Source string `yaml:"source"`

	// EntryPoint is the handler symbol, e.g. "code_explorer.lambda_handler".
	EntryPoint string `yaml:"entry_point"`

	// Tag is the image reference to build. Defaults to <name>:latest.
	Tag string `yaml:"tag"`
}

// Default returns the artifact for this repository's function.
func Default() Artifact {
	return Artifact{
		Name:         DefaultName,
		BaseImage:    DefaultBaseImage,
		BuilderImage: DefaultBuilderImage,
		Manifest:     DefaultManifest,
		Source:       DefaultSource,
		EntryPoint:   DefaultEntryPoint,
		Tag:          DefaultName + ":latest",
	}
}

// ParseManifest decodes a deploy.yaml document. Fields left empty take the
// values of Default, and the tag falls back to <name>:latest. Unknown keys
// are rejected. The result is validated.
func ParseManifest(data []byte) (Artifact, error) {
	var a Artifact
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("%w: failed to parse manifest: %v", ErrInvalidArtifact, err)
	}

	a = a.withDefaults()
	if err := a.Validate(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

func (a Artifact) withDefaults() Artifact {
	d := Default()
	if a.Name == "" {
		a.Name = d.Name
	}
	if a.BaseImage == "" {
		a.BaseImage = d.BaseImage
	}
	if a.BuilderImage == "" {
		a.BuilderImage = d.BuilderImage
	}
	if a.Manifest == "" {
		a.Manifest = d.Manifest
	}
	if a.Source == "" {
		a.Source = d.Source
	}
	if a.EntryPoint == "" {
		a.EntryPoint = d.EntryPoint
	}
	if a.Tag == "" {
		a.Tag = a.Name + ":latest"
	}
	return a
}

// Validate checks every field and reports all problems at once.
func (a Artifact) Validate() error {
	var problems []string

	required := []struct{ field, value string }{
		{"name", a.Name},
		{"base_image", a.BaseImage},
		{"builder_image", a.BuilderImage},
		{"manifest", a.Manifest},
		{"source", a.Source},
		{"entry_point", a.EntryPoint},
		{"tag", a.Tag},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.field+" is required")
		}
	}

	if a.Manifest != "" {
		if path.Base(a.Manifest) != "go.mod" {
			problems = append(problems, fmt.Sprintf("manifest %q must be a go.mod file", a.Manifest))
		} else if !isContained(a.Manifest) {
			problems = append(problems, fmt.Sprintf("manifest %q must be relative to the build context", a.Manifest))
		}
	}

	if a.Source != "" && !isContained(a.Source) {
		problems = append(problems, fmt.Sprintf("source %q must be relative to the module directory", a.Source))
	}

	if a.EntryPoint != "" {
		if err := ValidateEntryPoint(a.EntryPoint); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidArtifact, strings.Join(problems, "; "))
	}
	return nil
}

// ModuleDir returns the manifest's directory inside the build context.
func (a Artifact) ModuleDir() string {
	return path.Dir(path.Clean(a.Manifest))
}

// =============================================================================
// Entry Point
// =============================================================================

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateEntryPoint checks that name has the form <module>.<symbol> with
// both parts valid identifiers.
//
// Example:
//
//	ValidateEntryPoint("code_explorer.lambda_handler") // nil
//	ValidateEntryPoint("lambda_handler")               // ErrInvalidEntryPoint
func ValidateEntryPoint(name string) error {
	module, symbol, ok := strings.Cut(name, ".")
	if !ok || !identifier.MatchString(module) || !identifier.MatchString(symbol) {
		return fmt.Errorf("%w: %q must be <module>.<symbol>", ErrInvalidEntryPoint, name)
	}
	return nil
}

// isContained reports whether p is relative and stays inside its root.
func isContained(p string) bool {
	if path.IsAbs(p) {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
