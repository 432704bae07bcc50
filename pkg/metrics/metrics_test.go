package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSync(time.Now(), nil)
	m.ObserveSync(time.Now(), errors.New("push rejected"))
	m.ObserveSync(time.Now(), nil)
	m.Coalesced()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncCoalesced))
}

func TestLifecycleAndProxyMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Lifecycle("create", nil)
	m.Lifecycle("create", errors.New("boom"))
	m.Proxy("forwarded")
	m.HealthCheck("healthy")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LifecycleOps.WithLabelValues("create", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues("forwarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthChecks.WithLabelValues("healthy")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSync(time.Now(), nil)
		m.Coalesced()
		m.Proxy("forwarded")
		m.Lifecycle("delete", nil)
		m.HealthCheck("error")
	})
}

func TestRegisterHostGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterHostGauges(reg, time.Now().Add(-time.Minute), t.TempDir())

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "apphost_uptime_seconds")
	assert.Contains(t, names, "apphost_data_disk_available_bytes")
	assert.Contains(t, names, "apphost_system_load_average_1m")
}
