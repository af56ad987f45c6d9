package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/domain"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestConnectionState_IsOneHot(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ConnectionState(domain.ConnectionConnecting)
	m.ConnectionState(domain.ConnectionConnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PushState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PushState.WithLabelValues("offline")))
}

func TestCounters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ReconnectAttempt()
	m.ReconnectAttempt()
	m.PushEvent("container_status_update")
	m.Poll("error")
	m.StatusTransitions(3)
	m.Mutation("move", "committed")
	m.Reload("stale")
	m.ProxyRequest("POST", 201)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushEvents.WithLabelValues("container_status_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Transitions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("move", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues("POST", "201")))
}

func TestCacheLookup_CollapsesGenericKeys(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.CacheLookup(cache.KeyContainers, true)
	m.CacheLookup("/api/settings", false)
	m.CacheLookup("/api/system/info", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("containers", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("generic", "miss")))
}

func TestRegistry_Exposition(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.Poll("ok")

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP lighthouse_console_status_polls_total Fallback status polls by outcome
# TYPE lighthouse_console_status_polls_total counter
lighthouse_console_status_polls_total{outcome="ok"} 1
`), "lighthouse_console_status_polls_total")
	require.NoError(t, err)
}
