package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector(t *testing.T) {
	c := metrics.New("strata")
	c.ObserveFetch(metrics.FetchChanged, 10*time.Millisecond)
	c.ObserveFetch(metrics.FetchUnchanged, time.Millisecond)
	c.ObserveFetch(metrics.FetchUnchanged, time.Millisecond)
	c.SetVersion("v1", time.Unix(100, 0))
	c.SetVersion("v2", time.Unix(200, 0))

	body := scrape(t, c)
	assert.Contains(t, body, `strata_schema_fetches_total{result="changed"} 1`)
	assert.Contains(t, body, `strata_schema_fetches_total{result="unchanged"} 2`)
	assert.Contains(t, body, "strata_schema_fetch_duration_seconds_count 3")
	assert.Contains(t, body, `strata_schema_version_info{version="v2"} 1`)
	assert.NotContains(t, body, `version="v1"`)
	assert.Contains(t, body, "strata_schema_last_change_timestamp_seconds 200")
}

func TestCollector_Nil(t *testing.T) {
	var c *metrics.Collector
	c.ObserveFetch(metrics.FetchFailed, time.Second)
	c.SetVersion("v1", time.Now())
}

func TestCollector_Cache(t *testing.T) {
	c := metrics.New("strata")
	cache := strata.NewCache()
	require.NoError(t, c.RegisterCache("strata", cache))
	require.Error(t, c.RegisterCache("strata", cache), "duplicate registration")

	double := strata.Memoize(cache, "double", func(n int) (int, error) { return n * 2, nil },
		func(n int) string { return "n" })
	_, _ = double(1)
	_, _ = double(1)

	body := scrape(t, c)
	assert.Contains(t, body, "strata_cache_hits_total 1")
	assert.Contains(t, body, "strata_cache_misses_total 1")
	assert.Contains(t, body, "strata_cache_entries 1")
}
