package sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sdk"
	"github.com/syssam/strata/updater"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const teamSchema = `{
	"version": "v1",
	"schema": {
		"types": [{
			"name": "Team",
			"properties": {
				"code": {"type": "Code", "pattern": "LOWER", "canIdentify": true},
				"name": {"type": "Word", "fieldset": "main"},
				"lifecycle": {"type": "Lifecycle"},
				"members": {"type": "Membership"},
				"scratch": {"type": "Word", "isTest": true}
			},
			"fieldsets": {"main": {"heading": "Main"}}
		}, {
			"name": "Person",
			"properties": {
				"code": {"type": "Code"},
				"teams": {"type": "Membership"}
			}
		}, {
			"name": "Sandbox",
			"isTest": true,
			"properties": {"code": {"type": "Code"}}
		}],
		"relationshipTypes": [{
			"name": "Membership", "relationship": "HAS_MEMBER",
			"from": {"type": "Team", "hasMany": true},
			"to": {"type": "Person", "hasMany": true}
		}],
		"enums": {"Lifecycle": {"options": ["Production", "Retired"]}},
		"stringPatterns": {"LOWER": "^[a-z]+$"},
		"primitiveTypes": {
			"Code": {"graphql": "String", "component": "Text"},
			"Word": {"graphql": "String", "component": "Text"}
		}
	}
}`

func payload(t *testing.T, version string) *schema.Payload {
	t.Helper()
	p, err := schema.DecodeJSON(strings.NewReader(strings.Replace(teamSchema, `"v1"`, `"`+version+`"`, 1)))
	require.NoError(t, err)
	return p
}

func TestSDK_Static(t *testing.T) {
	s, err := sdk.New(sdk.WithSchemaData(payload(t, "v1")))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ready(context.Background()))

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	team, err := s.Type("Team", resolve.GroupProperties(true))
	require.NoError(t, err)
	assert.Equal(t, "Teams", team.PluralName)
	assert.Equal(t, []string{"main", "misc"}, team.Fieldsets.Keys())
	assert.False(t, team.Properties.Has("scratch"), "test properties are filtered")

	types, err := s.Types()
	require.NoError(t, err)
	require.Len(t, types, 2)

	rel, err := s.RelationshipType("Person", "teams")
	require.NoError(t, err)
	assert.Equal(t, "Team", rel.EndType)

	rels, err := s.RelationshipTypes()
	require.NoError(t, err)
	assert.Len(t, rels, 2)

	enums, err := s.Enums()
	require.NoError(t, err)
	assert.True(t, enums.Has("Lifecycle"))

	sv, err := s.StringValidator("LOWER")
	require.NoError(t, err)
	assert.True(t, sv.MatchString("abc"))

	prims, err := s.PrimitiveTypes()
	require.NoError(t, err)
	assert.True(t, prims.Has("Word"))

	h, err := s.TypeHierarchy()
	require.NoError(t, err)
	assert.Nil(t, h)

	t.Run("validators", func(t *testing.T) {
		v := s.Validator()
		require.NoError(t, v.ValidateProperty("Team", "lifecycle", "Production"))
		err := v.ValidateProperty("Team", "lifecycle", "Sunset")
		assert.True(t, strata.IsValidationError(err))
		err = v.ValidateCode("Team", "ABC")
		assert.True(t, strata.IsValidationError(err))
		assert.True(t, strata.IsUnknownType(v.ValidateTypeName("Sandbox")))
	})

	t.Run("graphql", func(t *testing.T) {
		defs, err := s.GraphQLDefs()
		require.NoError(t, err)
		assert.NotEmpty(t, defs)
		sdl, err := s.GraphQLSchema()
		require.NoError(t, err)
		assert.Contains(t, sdl, "type Team {")
		assert.Contains(t, sdl, "enum Lifecycle {")
		assert.NotContains(t, sdl, "Sandbox")
	})
}

func TestSDK_IncludeTestDefinitions(t *testing.T) {
	s, err := sdk.New(sdk.WithSchemaData(payload(t, "v1")), sdk.IncludeTestDefinitions(true))
	require.NoError(t, err)
	defer s.Close()
	team, err := s.Type("Team")
	require.NoError(t, err)
	assert.True(t, team.Properties.Has("scratch"))
	_, err = s.Type("Sandbox")
	assert.NoError(t, err)
}

func TestSDK_Options(t *testing.T) {
	_, err := sdk.New()
	assert.Error(t, err, "a source is required outside static mode")
	_, err = sdk.New(sdk.WithSchemaData(payload(t, "v1")), sdk.Watch(true))
	assert.ErrorContains(t, err, "watch requires a schema directory")
	_, err = sdk.New(sdk.WithBaseURL(""))
	assert.Error(t, err)
	_, err = sdk.New(sdk.WithMetrics(""))
	assert.Error(t, err)
}

func TestSDK_NotLoaded(t *testing.T) {
	s, err := sdk.New(sdk.WithSource(updater.SourceFunc(func(context.Context) (*schema.Payload, error) {
		return payload(t, "v1"), nil
	})))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Type("Team")
	assert.True(t, strata.IsSchemaNotLoaded(err))
	_, err = s.GraphQLDefs()
	assert.True(t, strata.IsSchemaNotLoaded(err))

	require.NoError(t, s.Ready(context.Background()))
	_, err = s.Type("Team")
	assert.NoError(t, err)
}

func TestSDK_OnChange(t *testing.T) {
	var version atomic.Value
	version.Store("v1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", updater.MediaTypeJSON)
		_, _ = w.Write([]byte(strings.Replace(teamSchema, `"v1"`, `"`+version.Load().(string)+`"`, 1)))
	}))
	defer srv.Close()

	s, err := sdk.New(
		sdk.WithBaseURL(srv.URL),
		sdk.WithTTL(time.Millisecond),
		sdk.WithMetrics("strata"),
	)
	require.NoError(t, err)
	defer s.Close()

	var (
		mu     sync.Mutex
		early  []updater.ChangeEvent
		late   []updater.ChangeEvent
		closed []updater.ChangeEvent
	)
	unsubscribe := s.OnChange(func(e updater.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		early = append(early, e)
	})
	unsubscribeClosed := s.OnChange(func(e updater.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, e)
	})
	unsubscribeClosed()

	ctx := context.Background()
	require.NoError(t, s.Ready(ctx))

	defer s.OnChange(func(e updater.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		late = append(late, e)
	})()

	version.Store("v2")
	require.Eventually(t, func() bool {
		_ = s.Refresh(ctx)
		v, _ := s.Version()
		return v == "v2"
	}, 2*time.Second, 5*time.Millisecond)
	unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, early, 2)
	assert.Equal(t, "", early[0].OldVersion)
	assert.Equal(t, "v1", early[0].NewVersion)
	assert.Equal(t, "v1", early[1].OldVersion)
	assert.Equal(t, "v2", early[1].NewVersion)

	require.Len(t, late, 2, "a late listener first receives the loading event")
	assert.Equal(t, "v1", late[0].NewVersion)
	assert.Equal(t, "v2", late[1].NewVersion)
	assert.Empty(t, closed)

	require.NotNil(t, s.Metrics())
	assert.Same(t, s.Cache(), s.Resolver().Cache())
}

func TestSDK_Watch(t *testing.T) {
	dir := t.TempDir()
	write := func(path, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join(dir, "types", "Team.yaml"), "properties:\n  code:\n    type: String\n")
	write(filepath.Join(dir, "version"), "v1\n")

	s, err := sdk.New(sdk.WithSchemaDirectory(dir), sdk.Watch(true))
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	write(filepath.Join(dir, "types", "Team.yaml"), "properties:\n  code:\n    type: String\n  name:\n    type: String\n")
	write(filepath.Join(dir, "version"), "v2\n")
	require.Eventually(t, func() bool {
		team, err := s.Type("Team")
		return err == nil && team.Properties.Has("name")
	}, 5*time.Second, 20*time.Millisecond)
	v, _ = s.Version()
	assert.Equal(t, "v2", v)
}
