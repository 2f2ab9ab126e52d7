package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/syssam/strata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"types/Team.yaml": `
description: A team
properties:
  code:
    type: String
    pattern: LOWER
  name:
    type: String
    fieldset: main
  size:
    type: Int
fieldsets:
  main:
    heading: Main
`,
		"string-patterns.yaml": "LOWER: ^[a-z]+$\n",
		"version":              "v1\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSDL(t *testing.T) {
	out, err := run(t, "sdl", "--dir", schemaDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "type Team {")
	assert.Contains(t, out, "scalar DateTime")
}

func TestType(t *testing.T) {
	out, err := run(t, "type", "Team", "--dir", schemaDir(t), "--grouped", "--meta")
	require.NoError(t, err)
	var team struct {
		Name       string
		Properties map[string]json.RawMessage
		Fieldsets  map[string]json.RawMessage
	}
	require.NoError(t, json.Unmarshal([]byte(out), &team))
	assert.Equal(t, "Team", team.Name)
	assert.Contains(t, team.Properties, "_updatedTimestamp")
	assert.Contains(t, team.Fieldsets, "meta")

	_, err = run(t, "type", "Nope", "--dir", schemaDir(t))
	assert.True(t, strata.IsUnknownType(err))
}

func TestValidate(t *testing.T) {
	dir := schemaDir(t)
	out, err := run(t, "validate", "Team", "size", "3", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	_, err = run(t, "validate", "Team", "code", `"ABC"`, "--dir", dir)
	assert.True(t, strata.IsValidationError(err))

	_, err = run(t, "validate", "Team", "code", `{`, "--dir", dir)
	assert.ErrorContains(t, err, "invalid JSON value")
}

func TestVersionAndErrors(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)

	_, err = run(t, "sdl")
	assert.ErrorContains(t, err, "one of schema.base_url or schema.directory is required")
}
