package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllMetricsWithoutPanicking(t *testing.T) {
	r := New()
	require.NotNil(t, r.Gatherer())
}

func TestFetchTotalRequestsIncrementsByStatus(t *testing.T) {
	r := New()
	r.FetchTotalRequests.WithLabelValues("ok").Inc()
	r.FetchTotalRequests.WithLabelValues("ok").Inc()
	r.FetchTotalRequests.WithLabelValues("error").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(r.FetchTotalRequests.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.FetchTotalRequests.WithLabelValues("error")))
}

func TestResetWorkerDeletesLabelSeries(t *testing.T) {
	r := New()
	r.WorkerDependencyCount.WithLabelValues("myquery", "pid-1").Set(3)
	require.Equal(t, float64(3), testutil.ToFloat64(r.WorkerDependencyCount.WithLabelValues("myquery", "pid-1")))

	r.ResetWorker("myquery", "pid-1")
	count := testutil.CollectAndCount(r.WorkerDependencyCount)
	require.Equal(t, 0, count)
}
