package ef5lake

import (
	"github.com/sirupsen/logrus"
)

// spiralOffsets are the eight sample positions examined at each search
// distance by LocateLake's eight-direction spiral search.
var spiralOffsets = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// LocateLake snaps lake's (Lat, Lon) to a grid cell on fam using an
// observed-FAM match (if lake.ObsFAMSet) or a max-FAM search otherwise,
// and stores the result on lake. If the lake's initial gridded location
// is outside the grid extent, the lake is disabled and a warning is
// logged.
func LocateLake(grid, fam *Grid, lake *Lake) {
	x0, y0, err := grid.gridLoc(lake.Lon, lake.Lat)
	if err != nil {
		diagnosticWarnings.warn("snap:"+lake.Name, logrus.Fields{"lake": lake.Name},
			"lake is outside the basic grid domain: %v", err)
		lake.Disabled = true
		return
	}

	if lake.ObsFAMSet {
		x, y := snapObservedFAM(grid, fam, lake, x0, y0)
		lake.XCell, lake.YCell = x, y
	} else {
		x, y := snapMaxFAM(fam, x0, y0)
		lake.XCell, lake.YCell = x, y
	}

	logrus.WithFields(logrus.Fields{
		"lake": lake.Name, "x": lake.XCell, "y": lake.YCell,
	}).Infof("lake snapped to FAM %g", fam.At(lake.XCell, lake.YCell))
}

// snapObservedFAM implements the observed-FAM snap mode: minimize
// (FAM - target)^2 over the initial cell and the eight sample positions at
// each distance 1..maxDist, where target is ObsFAM converted to cell
// units via the grid's cell area.
func snapObservedFAM(grid, fam *Grid, lake *Lake, x0, y0 int) (int, int) {
	cellArea := grid.getArea(grid.refLoc(x0, y0))
	target := lake.ObsFAM * (1.0 / cellArea)

	cellLen := grid.getLen(grid.refLoc(x0, y0), FlowNorth)
	maxDist := int(round(20000.0 / cellLen))
	if maxDist < 2 {
		maxDist = 2
	}

	bestX, bestY := x0, y0
	bestErr := sq(fam.At(x0, y0) - target)

	for d := 1; d <= maxDist; d++ {
		for _, off := range spiralOffsets {
			x := x0 + off[0]*d
			y := y0 + off[1]*d
			if fam.IsNoData(x, y) {
				continue
			}
			e := sq(fam.At(x, y) - target)
			if e < bestErr {
				bestErr = e
				bestX, bestY = x, y
			}
		}
	}
	return bestX, bestY
}

// snapMaxFAM implements the max-FAM snap mode: pick the cell with the
// largest FAM value over the initial cell and the eight sample positions
// at each distance 1..50.
func snapMaxFAM(fam *Grid, x0, y0 int) (int, int) {
	const maxDist = 50
	bestX, bestY := x0, y0
	bestFAM := fam.At(x0, y0)

	for d := 1; d <= maxDist; d++ {
		for _, off := range spiralOffsets {
			x := x0 + off[0]*d
			y := y0 + off[1]*d
			if fam.IsNoData(x, y) {
				continue
			}
			if fam.At(x, y) > bestFAM {
				bestFAM = fam.At(x, y)
				bestX, bestY = x, y
			}
		}
	}
	return bestX, bestY
}

func sq(v float64) float64 { return v * v }

func round(v float64) float64 {
	if v < 0 {
		return float64(int(v - 0.5))
	}
	return float64(int(v + 0.5))
}
