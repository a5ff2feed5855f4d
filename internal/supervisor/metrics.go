package supervisor

import (
	"math"
	"sort"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/metrics"
)

// quantiles are the buckets spec §4.H's metrics aggregation names:
// "{0.50, 0.90, 0.99, 1.00}".
var quantiles = []float64{0.50, 0.90, 0.99, 1.00}

func quantileLabels() []string {
	labels := make([]string, len(quantiles))
	for i, q := range quantiles {
		labels[i] = quantileLabel(q)
	}
	return labels
}

func quantileLabel(q float64) string {
	switch q {
	case 0.50:
		return "0.50"
	case 0.90:
		return "0.90"
	case 0.99:
		return "0.99"
	default:
		return "1.00"
	}
}

// labelGroup tracks the set of active workers sharing a query label and
// their most recently reported dependency count, recomputing the
// quantile buckets on every update the way spec §4.H describes: "On each
// metric update, recompute bucket values across the group's workers and
// publish."
type labelGroup struct {
	dependencyCounts map[actorbus.PID]int
}

func newLabelGroup() *labelGroup {
	return &labelGroup{dependencyCounts: make(map[actorbus.PID]int)}
}

func (lg *labelGroup) setDependencyCount(pid actorbus.PID, count int, reg *metrics.Registry, label string) {
	lg.dependencyCounts[pid] = count
	lg.publish(reg, label)
}

func (lg *labelGroup) remove(pid actorbus.PID) {
	delete(lg.dependencyCounts, pid)
}

func (lg *labelGroup) empty() bool { return len(lg.dependencyCounts) == 0 }

func (lg *labelGroup) publish(reg *metrics.Registry, label string) {
	values := make([]int, 0, len(lg.dependencyCounts))
	for _, v := range lg.dependencyCounts {
		values = append(values, v)
	}
	sort.Ints(values)

	for _, q := range quantiles {
		reg.WorkerDependencyQuantile.WithLabelValues(label, quantileLabel(q)).Set(float64(nearestRank(values, q)))
	}
}

// nearestRank implements the nearest-rank quantile method over a sorted
// slice: the value at position ceil(q*n), 1-indexed.
func nearestRank(sorted []int, q float64) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
