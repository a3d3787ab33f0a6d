package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New(prometheus.NewRegistry())
	require.NotNil(t, m)

	assert.NotNil(t, m.BundleLoadsTotal)
	assert.NotNil(t, m.FetchFailures)
	assert.NotNil(t, m.ReloadsTotal)
	assert.NotNil(t, m.ModeSwitchesTotal)
	assert.NotNil(t, m.ScriptErrorsTotal)
	assert.NotNil(t, m.WeatherFetchesTotal)
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordBundleLoad(SourceLive)
	m.RecordBundleLoad(SourceLive)
	m.RecordBundleLoad(SourceCache)
	m.SetFetchFailures(4)
	m.RecordReload("fetch_failures", "cooldown")
	m.RecordModeSwitch("image")
	m.RecordScriptError()
	m.RecordWeatherFetch("error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BundleLoadsTotal.WithLabelValues(SourceLive)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BundleLoadsTotal.WithLabelValues(SourceCache)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FetchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsTotal.WithLabelValues("fetch_failures", "cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeSwitchesTotal.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScriptErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherFetchesTotal.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordBundleLoad(SourceEmpty)
		m.SetFetchFailures(1)
		m.RecordReload("x", "y")
		m.RecordModeSwitch("text")
		m.RecordScriptError()
		m.RecordWeatherFetch("success")
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordScriptError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pano_script_errors_total 1")
}
