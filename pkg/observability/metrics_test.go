package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	m.Counter("x", 1)
	m.Gauge("x", 1)
	m.Timing("x", time.Second)
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("counter accumulates per tag set", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter(MetricPlansCreated, 1, T("visibility", "PUBLIC"))
		m.Counter(MetricPlansCreated, 2, T("visibility", "PUBLIC"))
		m.Counter(MetricPlansCreated, 1, T("visibility", "PRIVATE"))

		assert.Equal(t, int64(3), m.GetCounter(MetricPlansCreated, T("visibility", "PUBLIC")))
		assert.Equal(t, int64(1), m.GetCounter(MetricPlansCreated, T("visibility", "PRIVATE")))
	})

	t.Run("tag order does not matter", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter("c", 1, T("a", "1"), T("b", "2"))
		m.Counter("c", 1, T("b", "2"), T("a", "1"))
		assert.Equal(t, int64(2), m.GetCounter("c", T("a", "1"), T("b", "2")))
	})

	t.Run("gauge keeps last value", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Gauge(MetricOutboxLag, 4)
		m.Gauge(MetricOutboxLag, 1.5)
		assert.Equal(t, 1.5, m.GetGauge(MetricOutboxLag))
	})

	t.Run("timings and snapshot", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Timing("t", time.Millisecond)
		m.Timing("t", 2*time.Millisecond)
		m.Counter("c", 5)
		m.Gauge("g", 7)

		assert.Len(t, m.GetTimings("t"), 2)
		snap := m.Snapshot()
		assert.Equal(t, 5.0, snap["c"])
		assert.Equal(t, 7.0, snap["g"])
	})
}

func TestTimer_StopWithError(t *testing.T) {
	m := NewInMemoryMetrics()

	_ = TimeOperation(t.Context(), nil, m, "apply", func() error { return nil })
	_ = TimeOperation(t.Context(), nil, m, "apply", func() error { return assert.AnError })

	tag := T("operation", "apply")
	assert.Equal(t, int64(2), m.GetCounter(MetricOperationTotal, tag))
	assert.Equal(t, int64(1), m.GetCounter(MetricOperationErrors, tag))
	assert.Len(t, m.GetTimings(MetricOperationDuration, tag), 2)
}
