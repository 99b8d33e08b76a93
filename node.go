/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP. If not, see <http://www.gnu.org/licenses/>.
*/

package ef5lake

// GridNode is a single active cell carved into a basin's node set: its
// grid location, drainage area, and a stable index into the owning
// NodeSet's gauge list. Nodes never hold an owning reference to their
// gauge, only its index, per the arena-and-stable-index design used
// throughout this package for cyclic/back-reference structures.
type GridNode struct {
	X, Y     int
	Area     float64 // m^2
	GaugeIdx int     // index into NodeSet.Gauges, or -1 if ungauged
}

// NodeSet is the ordered sequence of active cells carved from a basin,
// together with the gauges those cells drain to. It is built once during
// carve and is immutable while the simulation steps.
type NodeSet struct {
	Nodes  []GridNode
	Gauges []*Gauge
}

// IndexOf returns the node-set index of the node at (x, y), or -1 if no
// such node exists. Lakes and inlets resolve their grid location to a
// node index once, at configuration time, via this lookup.
func (ns *NodeSet) IndexOf(x, y int) int {
	for i := range ns.Nodes {
		if ns.Nodes[i].X == x && ns.Nodes[i].Y == y {
			return i
		}
	}
	return -1
}

// CarveNodes builds the node set for a basin, run once during carve
// before stepping begins: every cell of fam that is not NoData becomes a
// node, its area taken from the grid's getArea, and it is assigned to
// the nearest gauge by great-circle-free planar distance in grid
// coordinates. Gauge snapping to the grid (via gridLoc) is the caller's
// responsibility; gauges is expected already snapped (X, Y set).
//
// Watershed delineation (assigning a cell to the gauge whose drainage
// network actually contains it, by walking DDM flow paths) is the
// externally supplied routing model's concern; nearest-gauge assignment
// is this package's config-time stand-in so a NodeSet can be carved
// without a routing model present.
func CarveNodes(fam *Grid, gauges []*Gauge) *NodeSet {
	ns := &NodeSet{Gauges: gauges}
	for y := 0; y < fam.Rows; y++ {
		for x := 0; x < fam.Cols; x++ {
			if fam.IsNoData(x, y) {
				continue
			}
			loc := fam.refLoc(x, y)
			node := GridNode{
				X:        x,
				Y:        y,
				Area:     fam.getArea(loc),
				GaugeIdx: nearestGauge(x, y, gauges),
			}
			ns.Nodes = append(ns.Nodes, node)
		}
	}
	return ns
}

// nearestGauge returns the index into gauges of the gauge whose snapped
// cell is closest (Euclidean, in cell units) to (x, y), or -1 if gauges
// is empty.
func nearestGauge(x, y int, gauges []*Gauge) int {
	best := -1
	bestDist := 0.0
	for i, g := range gauges {
		dx := float64(g.X - x)
		dy := float64(g.Y - y)
		d := dx*dx + dy*dy
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
