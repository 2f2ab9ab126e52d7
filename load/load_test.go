package load_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syssam/strata/load"
	"github.com/syssam/strata/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "types", "Team.yaml"), `
description: A team
properties:
  code:
    type: Code
  members:
    type: Membership
  lifecycle:
    type: Lifecycle
`)
	write(t, filepath.Join(dir, "types", "Person.yaml"), `
name: Person
properties:
  code:
    type: Code
    pattern: LOWER
  teams:
    type: Membership
`)
	write(t, filepath.Join(dir, "relationship-types.yaml"), `
- name: Membership
  relationship: HAS_MEMBER
  from: {type: Team, hasMany: true}
  to: {type: Person, hasMany: true}
`)
	write(t, filepath.Join(dir, "enums.yaml"), `
Lifecycle:
  description: Stage
  options:
    Production: Live
    Retired: Gone
`)
	write(t, filepath.Join(dir, "string-patterns.yaml"), `
LOWER: ^[a-z]+$
`)
	write(t, filepath.Join(dir, "primitive-types.yaml"), `
Code: {graphql: String, component: Text}
`)
	write(t, filepath.Join(dir, "type-hierarchy.yaml"), `
org:
  label: Organisation
  types: [Team, Person]
`)
	return dir
}

func TestDir(t *testing.T) {
	dir := fixtureDir(t)
	p, err := load.Dir(context.Background(), dir)
	require.NoError(t, err)

	snap := p.Snapshot()
	require.Len(t, snap.Types, 2)
	assert.Equal(t, "Person", snap.Types[0].Name, "files are read in name order")
	assert.Equal(t, "Team", snap.Types[1].Name, "name defaults to the file name")
	assert.Equal(t, []string{"code", "members", "lifecycle"}, snap.Types[1].Properties.Keys())

	rt, ok := snap.RelationshipType("Membership")
	require.True(t, ok)
	assert.Equal(t, "HAS_MEMBER", rt.Relationship)
	assert.True(t, rt.From.HasMany)

	lc, _ := snap.Enums.Get("Lifecycle")
	assert.Equal(t, []schema.EnumOption{{Value: "Production", Description: "Live"}, {Value: "Retired", Description: "Gone"}}, lc.Options.Options())
	lower, _ := snap.StringPatterns.Get("LOWER")
	assert.Equal(t, "^[a-z]+$", lower.Pattern)
	code, _ := snap.PrimitiveTypes.Get("Code")
	assert.Equal(t, "String", code.GraphQL)
	org, _ := snap.TypeHierarchy.Get("org")
	assert.Equal(t, []string{"Team", "Person"}, org.Types)

	t.Run("content hash version", func(t *testing.T) {
		assert.Len(t, p.Version, 16)
		again, err := load.Dir(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, p.Version, again.Version)

		write(t, filepath.Join(dir, "string-patterns.yaml"), "LOWER: ^[a-z]*$\n")
		changed, err := load.Dir(context.Background(), dir)
		require.NoError(t, err)
		assert.NotEqual(t, p.Version, changed.Version)
	})

	t.Run("version file", func(t *testing.T) {
		write(t, filepath.Join(dir, "version"), "2024-06-01\n")
		p, err := load.Dir(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01", p.Version)
		assert.Equal(t, "2024-06-01", p.Snapshot().Version)
	})
}

func TestDir_RelationshipTypesDirectory(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "relationship-types.yaml")))
	write(t, filepath.Join(dir, "relationship-types", "Membership.yml"), `
relationship: HAS_MEMBER
from: {type: Team}
to: {type: Person}
`)
	p, err := load.Dir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, p.Schema.RelationshipTypes, 1)
	assert.Equal(t, "Membership", p.Schema.RelationshipTypes[0].Name)
}

func TestDir_Errors(t *testing.T) {
	_, err := load.Dir(context.Background(), t.TempDir())
	assert.Error(t, err, "types are required")

	dir := fixtureDir(t)
	write(t, filepath.Join(dir, "types", "Broken.yaml"), "properties: [not, a, map")
	_, err = load.Dir(context.Background(), dir)
	assert.ErrorContains(t, err, "Broken.yaml")
}

func TestWatcher(t *testing.T) {
	dir := fixtureDir(t)
	var (
		mu       sync.Mutex
		versions []string
	)
	w, err := load.NewWatcher(dir, func(p *schema.Payload) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, p.Version)
	}, load.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	write(t, filepath.Join(dir, "version"), "v2\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) > 0 && versions[len(versions)-1] == "v2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_SerialReloads(t *testing.T) {
	dir := fixtureDir(t)
	var (
		active, peak atomic.Int32
		mu           sync.Mutex
		versions     []string
	)
	w, err := load.NewWatcher(dir, func(p *schema.Payload) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(60 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, p.Version)
	}, load.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for _, v := range []string{"v2", "v3", "v4", "v5"} {
		write(t, filepath.Join(dir, "version"), v+"\n")
		time.Sleep(25 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) > 0 && versions[len(versions)-1] == "v5"
	}, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, peak.Load(), "reloads never overlap")
}
