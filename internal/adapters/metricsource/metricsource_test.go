package metricsource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/alert-engine/internal/config"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubSource struct {
	value *float64
	err   error
	calls int
}

func (s *stubSource) GetLatestValue(context.Context, string, string, time.Duration) (*float64, error) {
	s.calls++
	return s.value, s.err
}

func val(v float64) *float64 { return &v }

func TestRouter_LongestPrefixWins(t *testing.T) {
	system := &stubSource{value: val(1)}
	systemDisk := &stubSource{value: val(2)}
	fallback := &stubSource{value: val(3)}

	router := NewRouter(quietLogger(), fallback)
	router.Route("system.", system)
	router.Route("system.disk.", systemDisk)
	ctx := context.Background()

	v, err := router.GetLatestValue(ctx, "system.disk.used_percent", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *v)

	v, err = router.GetLatestValue(ctx, "system.load.1", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *v)

	v, err = router.GetLatestValue(ctx, "app.latency", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3.0, *v)
}

func TestRouter_FallbackChain(t *testing.T) {
	ctx := context.Background()

	empty := &stubSource{}
	broken := &stubSource{err: errors.New("down")}
	last := &stubSource{value: val(7)}

	router := NewRouter(quietLogger(), empty, broken)
	router.AddFallback(last)

	v, err := router.GetLatestValue(ctx, "app.qps", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 7.0, *v)
	assert.Equal(t, 1, empty.calls)

	noData := NewRouter(quietLogger(), &stubSource{})
	v, err = noData.GetLatestValue(ctx, "app.qps", "", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, v)

	failing := NewRouter(quietLogger(), broken)
	_, err = failing.GetLatestValue(ctx, "app.qps", "", time.Minute)
	assert.EqualError(t, err, "down")
}

func TestHostSource(t *testing.T) {
	source := NewHostSource("system.")
	source.readers["test.constant"] = func(context.Context) (float64, error) { return 42, nil }
	ctx := context.Background()

	v, err := source.GetLatestValue(ctx, "system.test.constant", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 42.0, *v)

	_, err = source.GetLatestValue(ctx, "system.nope", "", 0)
	assert.Error(t, err)

	assert.Contains(t, source.HostMetrics(), "memory.used_percent")
	assert.Equal(t, "system.", source.Prefix())
}

func TestHostSource_ReadsMemory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("host readings are only checked on linux")
	}

	v, err := NewHostSource("system.").GetLatestValue(context.Background(), "system.memory.used_percent", "", 0)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.GreaterOrEqual(t, *v, 0.0)
	assert.LessOrEqual(t, *v, 100.0)
}

func TestPrometheusSource_Query(t *testing.T) {
	source, err := NewPrometheusSource(config.PrometheusSourceConfig{URL: "http://prometheus:9090", TenantLabel: "tenant"}, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, `max(last_over_time(http_errors_rate[5m]))`, source.Query("http.errors.rate", "", 5*time.Minute))
	assert.Equal(t, `max(last_over_time(http_errors_rate{tenant="acme"}[1m30s]))`, source.Query("http.errors.rate", "acme", 90*time.Second))
}

func TestPrometheusSource_GetLatestValue(t *testing.T) {
	var queries []string
	body := `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"42.5"]}]}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		queries = append(queries, r.FormValue("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	source, err := NewPrometheusSource(config.PrometheusSourceConfig{URL: server.URL, Timeout: time.Second}, quietLogger())
	require.NoError(t, err)

	v, err := source.GetLatestValue(context.Background(), "cpu.usage", "", 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 42.5, *v)
	assert.Equal(t, []string{"max(last_over_time(cpu_usage[5m]))"}, queries)

	body = `{"status":"success","data":{"resultType":"vector","result":[]}}`
	v, err = source.GetLatestValue(context.Background(), "cpu.usage", "", 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPrometheusSource_RequiresURL(t *testing.T) {
	_, err := NewPrometheusSource(config.PrometheusSourceConfig{}, nil)
	assert.Error(t, err)
}

func TestCachedSource(t *testing.T) {
	backend := &stubSource{value: val(5)}
	cached := NewCachedSource(backend, 10*time.Second)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := cached.GetLatestValue(ctx, "queue.depth", "acme", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 5.0, *v)
	}
	assert.Equal(t, 1, backend.calls)

	// a different tenant or window is a different key
	_, err := cached.GetLatestValue(ctx, "queue.depth", "globex", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)

	now = now.Add(11 * time.Second)
	_, err = cached.GetLatestValue(ctx, "queue.depth", "acme", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls)

	stats := cached.Stats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 3, stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCachedSource_DoesNotCacheErrors(t *testing.T) {
	backend := &stubSource{err: errors.New("timeout")}
	cached := NewCachedSource(backend, time.Minute)
	ctx := context.Background()

	_, err := cached.GetLatestValue(ctx, "m", "", time.Minute)
	assert.Error(t, err)
	_, err = cached.GetLatestValue(ctx, "m", "", time.Minute)
	assert.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}
