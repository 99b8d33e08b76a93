package ef5lake

import (
	"math"
	"time"
)

// computeInflow resolves a lake's inflow for a step: bound inlets
// (summed, not averaged) take priority over the upstream-neighbor mean
// of routed Q, which in turn falls back to the lake's own node value
// when there are no upstream neighbors.
func computeInflow(lake *Lake, ns *NodeSet, q []float64, currentTime time.Time) float64 {
	if len(lake.Inlets) > 0 {
		var total float64
		for _, in := range lake.Inlets {
			v := in.ObservedAt(currentTime)
			if !math.IsNaN(v) {
				total += v
			}
		}
		return total
	}

	if len(lake.UpstreamNeighbors) > 0 {
		var sum float64
		var count int
		for _, n := range lake.UpstreamNeighbors {
			idx := ns.IndexOf(n.X, n.Y)
			if idx < 0 || idx >= len(q) {
				continue
			}
			sum += q[idx]
			count++
		}
		if count > 0 {
			return sum / float64(count)
		}
		return 0
	}

	if lake.NodeIndex >= 0 && lake.NodeIndex < len(q) {
		return q[lake.NodeIndex]
	}
	return 0
}
