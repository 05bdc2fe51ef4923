package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Usage(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, ExitConfigError, run(nil, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "usage")
}

func TestRun_UnknownHandlerIsInitError(t *testing.T) {
	t.Setenv("CODE_EXPLORER_AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("CODE_EXPLORER_AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CODE_EXPLORER_CACHE_ENABLED", "false")

	var stderr bytes.Buffer
	code := run([]string{"invoke", "-handler", "code_explorer.missing"}, &bytes.Buffer{}, &stderr)
	assert.Equal(t, ExitInitError, code)
	assert.Contains(t, stderr.String(), "handler not found")
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Setenv("CODE_EXPLORER_AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("CODE_EXPLORER_AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CODE_EXPLORER_CACHE_ENABLED", "false")

	assert.Equal(t, ExitConfigError, run([]string{"deploy"}, &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestRun_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("costs:\n  granularity: YEARLY\n"), 0o644))

	var stderr bytes.Buffer
	assert.Equal(t, ExitConfigError, run([]string{"serve", "-config", path}, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "configuration error")
}
