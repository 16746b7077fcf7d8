package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorsAreNoOps(t *testing.T) {
	enabled = false
	registry = nil

	var bm *BindMetrics
	var sm *ServerMetrics
	assert.NotPanics(t, func() {
		bm.RecordAttempt("getpwnam", "ok")
		bm.RecordFailover()
		bm.RecordClientRecycle()
		bm.RecordRequestDuration("getpwnam", time.Millisecond)
		bm.SetActiveServerIndex(1)
		sm.RecordRequest("passwd", 200, time.Millisecond)
		sm.RecordBackendError("passwd", "not_found")
	})

	assert.Nil(t, NewBindMetrics())
	assert.Nil(t, NewServerMetrics())
}

func TestCollectorsRecordWhenEnabled(t *testing.T) {
	InitRegistry()
	defer func() { enabled = false; registry = nil }()

	bm := NewBindMetrics()
	require.NotNil(t, bm)
	bm.RecordAttempt("getpwnam", "ok")
	bm.RecordFailover()

	count := testutil.ToFloat64(bm.attempts.WithLabelValues("getpwnam", "ok"))
	assert.Equal(t, float64(1), count)

	sm := NewServerMetrics()
	require.NotNil(t, sm)
	sm.RecordRequest("passwd", 404, time.Millisecond)
	count = testutil.ToFloat64(sm.requests.WithLabelValues("passwd", "4xx"))
	assert.Equal(t, float64(1), count)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(404))
	assert.Equal(t, "5xx", statusLabel(500))
	assert.Equal(t, "other", statusLabel(100))
}
