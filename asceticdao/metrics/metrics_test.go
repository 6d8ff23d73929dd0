package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorObserve(t *testing.T) {
	c := NewCollector("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.Observe("get_many", "User", StatusOK, 3*time.Millisecond)
	c.Observe("get_many", "User", StatusOK, time.Millisecond)
	c.Observe("get_by_id", "User", StatusNotFound, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.OperationsTotal.WithLabelValues("get_many", "User", StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.OperationsTotal.WithLabelValues("get_by_id", "User", StatusNotFound)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.OperationDuration))
}

func TestCollectorRegisterTwice(t *testing.T) {
	c := NewCollector("")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.Observe("count", "User", StatusOK, time.Second) })
}
