package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/nativebind/internal/cli"
)

func TestRun_Example(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--target", "ios-arm64,tvos-arm64", "../../examples/swift-dav1d"}
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}

	// --- Act ---
	err := run(out, logs, args)

	// --- Assert ---
	require.NoError(t, err, logs.String())
	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc), "stdout carries only the publication")
	assert.Equal(t, "swift-dav1d", doc["package"])
	assert.Len(t, doc["fingerprints"], 2)
}

func TestRun_RelativeManifestPath(t *testing.T) {
	// --- Arrange ---
	t.Chdir(filepath.Join("..", ".."))
	args := []string{"--target", "ios-arm64", "examples/swift-dav1d"}
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}

	// --- Act ---
	err := run(out, logs, args)

	// --- Assert ---
	require.NoError(t, err, logs.String())
	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Len(t, doc["fingerprints"], 1)
}

func TestRun_LoadError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// An HCL file with a syntax error fails loading before any resolution.
	invalidHCL := `
		package "p" {
			targets = [
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	// --- Act ---
	runErr := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{filePath})

	// --- Assert ---
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "failed to load manifest")
	assert.Contains(t, runErr.Error(), "failed to parse")
	assert.Equal(t, cli.ExitFailure, cli.Classify(runErr).Code)
}

func TestRun_SchemaTooNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Package.hcl"), []byte(`
schema_version = 5
package "p" {
  targets = ["ios-arm64"]
}
binary "b" {
  path = "b.xcframework"
}
module "m" {
  binary   = "b"
  strategy = "prebuilt-module"
  declare "f" {}
}
`), 0o600))

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{dir})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown strategy "prebuilt-module"`)
	assert.Equal(t, cli.ExitSchemaTooNew, cli.Classify(err).Code)
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, &bytes.Buffer{}, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}

	// --- Act ---
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, args)

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitUsage, exitErr.Code)
	assert.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}
