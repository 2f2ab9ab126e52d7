package updater_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/rawdata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/updater"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaJSON = `{
  "version": "v1",
  "schema": {
    "types": [{"name": "Team", "properties": {"code": {"type": "Code"}}}],
    "primitiveTypes": {"Code": {"graphql": "String", "component": "Text"}}
  }
}`

func TestHTTPSource(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, updater.SchemaPath, r.URL.Path)
			assert.Contains(t, r.Header.Get("Accept"), updater.MediaTypeJSON)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write([]byte(schemaJSON))
		}))
		defer srv.Close()

		src := updater.NewHTTPSource(srv.URL + "/")
		assert.Equal(t, srv.URL+updater.SchemaPath, src.URL())
		p, err := src.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1", p.Version)
		require.Len(t, p.Schema.Types, 1)
		assert.Equal(t, "Team", p.Schema.Types[0].Name)
	})

	t.Run("msgpack", func(t *testing.T) {
		want, err := schema.DecodeJSON(strings.NewReader(schemaJSON))
		require.NoError(t, err)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", updater.MediaTypeMsgpack)
			assert.NoError(t, schema.EncodeMsgpack(w, want))
		}))
		defer srv.Close()

		p, err := updater.NewHTTPSource(srv.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1", p.Version)
		code, ok := p.Schema.PrimitiveTypes.Get("Code")
		require.True(t, ok)
		assert.Equal(t, "String", code.GraphQL)
	})

	t.Run("errors", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer failing.Close()
		_, err := updater.NewHTTPSource(failing.URL).Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, strata.IsTransportError(err))
		assert.ErrorContains(t, err, "502")

		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer broken.Close()
		var te *strata.TransportError
		_, err = updater.NewHTTPSource(broken.URL).Fetch(context.Background())
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "decode", te.Op)
	})
}

func TestHTTPSource_Breaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := updater.NewHTTPSource(srv.URL, updater.WithBreaker(updater.BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MinRequests: 2,
		FailureRate: 0.5,
	}))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := src.Fetch(ctx)
		require.Error(t, err)
	}
	_, err := src.Fetch(ctx)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, strata.IsTransportError(err))
	assert.EqualValues(t, 2, hits.Load(), "open breaker short-circuits")
}

func TestHTTPSource_WithUpdater(t *testing.T) {
	var version atomic.Value
	version.Store("v1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", updater.MediaTypeJSON)
		_, _ = w.Write([]byte(strings.Replace(schemaJSON, `"v1"`, `"`+version.Load().(string)+`"`, 1)))
	}))
	defer srv.Close()

	store := rawdata.New()
	var rec recorder
	u, err := updater.New(store, nil,
		updater.WithSource(updater.NewHTTPSource(srv.URL)),
		updater.WithMode(updater.Poll),
		updater.WithTTL(20*time.Millisecond),
		updater.OnChange(rec.record),
	)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, u.Ready(ctx))
	defer u.StopPolling()

	version.Store("v2")
	require.Eventually(t, func() bool {
		v, _ := store.Version()
		return v == "v2"
	}, 2*time.Second, 10*time.Millisecond)
	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, "v2", events[1].NewVersion)
}
