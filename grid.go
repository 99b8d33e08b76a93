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

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/ef5lake/internal/hash"
)

// FlowDir is the D8 flow-direction code carried by a DDM cell.
type FlowDir int

// Flow direction codes. Sink means the cell has no defined downstream
// neighbor.
const (
	FlowNorth FlowDir = iota
	FlowNortheast
	FlowEast
	FlowSoutheast
	FlowSouth
	FlowSouthwest
	FlowWest
	FlowNorthwest
	FlowSink
)

// flowOffset returns the (dx, dy) a cell carrying dir points to, in the
// raster's (increasing y = row increases) orientation.
func flowOffset(dir FlowDir) (dx, dy int, ok bool) {
	switch dir {
	case FlowNorth:
		return 0, 1, true
	case FlowNortheast:
		return 1, 1, true
	case FlowEast:
		return 1, 0, true
	case FlowSoutheast:
		return 1, -1, true
	case FlowSouth:
		return 0, -1, true
	case FlowSouthwest:
		return -1, -1, true
	case FlowWest:
		return -1, 0, true
	case FlowNorthwest:
		return -1, 1, true
	default:
		return 0, 0, false
	}
}

// Extent is a rectangular geographic bounding box in decimal degrees.
type Extent struct {
	Left, Right, Top, Bottom float64
}

const spatialTolerance = 1e-9

// Grid is an immutable rectangular raster: a dense 2-D field of values
// plus a NoData sentinel and the geographic referencing needed to convert
// between cell indices and (lon, lat).
type Grid struct {
	Rows, Cols int
	CellSize   float64 // decimal degrees per cell
	Extent     Extent
	Data       *sparse.DenseArray // shape [Rows, Cols], indexed Get(y, x)
	NoData     float64
}

// NewGrid allocates a Grid of the given shape, filled with noData.
func NewGrid(rows, cols int, cellSize float64, extent Extent, noData float64) *Grid {
	d := sparse.ZerosDense(rows, cols)
	for i := range d.Elements {
		d.Elements[i] = noData
	}
	return &Grid{Rows: rows, Cols: cols, CellSize: cellSize, Extent: extent, Data: d, NoData: noData}
}

// At returns the value at cell (x, y), where x is the column and y is the
// row, consistent with the rest of this package's (x, y) convention.
func (g *Grid) At(x, y int) float64 {
	return g.Data.Get(y, x)
}

// Set stores val at cell (x, y).
func (g *Grid) Set(x, y int, val float64) {
	g.Data.Set(val, y, x)
}

// InBounds reports whether (x, y) addresses a valid cell.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Cols && y >= 0 && y < g.Rows
}

// IsNoData reports whether the value at (x, y) is the grid's NoData
// sentinel. Out-of-bounds cells are treated as NoData.
func (g *Grid) IsNoData(x, y int) bool {
	if !g.InBounds(x, y) {
		return true
	}
	return g.At(x, y) == g.NoData
}

// refLoc converts a cell index to a (lon, lat) geographic point. Row 0 is
// the grid's Top edge; column 0 is the Left edge.
func (g *Grid) refLoc(x, y int) geom.Point {
	lon := g.Extent.Left + (float64(x)+0.5)*g.CellSize
	lat := g.Extent.Top - (float64(y)+0.5)*g.CellSize
	return geom.Point{X: lon, Y: lat}
}

// gridLoc converts a geographic (lon, lat) point to the cell index that
// contains it. It returns an error if the point falls outside the grid's
// extent.
func (g *Grid) gridLoc(lon, lat float64) (x, y int, err error) {
	if lon < g.Extent.Left || lon > g.Extent.Right || lat > g.Extent.Top || lat < g.Extent.Bottom {
		return 0, 0, fmt.Errorf("ef5lake: (%g, %g) is outside the grid extent %+v", lon, lat, g.Extent)
	}
	x = int((lon - g.Extent.Left) / g.CellSize)
	y = int((g.Extent.Top - lat) / g.CellSize)
	if x >= g.Cols {
		x = g.Cols - 1
	}
	if y >= g.Rows {
		y = g.Rows - 1
	}
	return x, y, nil
}

// Fingerprint returns a stable hash key over g's shape and georeference,
// used to stamp saved state rasters so a later run can detect that it was
// reloaded against a different grid even when rounding hides the
// difference from isSpatialMatch's tolerance check.
func (g *Grid) Fingerprint() string {
	return hash.Hash(struct {
		Rows, Cols int
		CellSize   float64
		Extent     Extent
	}{g.Rows, g.Cols, g.CellSize, g.Extent})
}

// isSpatialMatch reports whether g and other share the same extent and
// cell size within a small tolerance, so that state saved against one is
// safe to load against the other.
func (g *Grid) isSpatialMatch(other *Grid) bool {
	if other == nil {
		return false
	}
	if g.Rows != other.Rows || g.Cols != other.Cols {
		return false
	}
	close := func(a, b float64) bool { return math.Abs(a-b) < spatialTolerance }
	return close(g.CellSize, other.CellSize) &&
		close(g.Extent.Left, other.Extent.Left) &&
		close(g.Extent.Right, other.Extent.Right) &&
		close(g.Extent.Top, other.Extent.Top) &&
		close(g.Extent.Bottom, other.Extent.Bottom)
}

// getLen returns the real-world distance, in meters, between the centers
// of two adjacent cell centered on loc in the given compass direction.
// A spherical-earth approximation is used: 1 degree of latitude is always
// ~111,320 m, and 1 degree of longitude is scaled by cos(latitude).
func (g *Grid) getLen(loc geom.Point, dir FlowDir) float64 {
	const metersPerDegLat = 111320.0
	dx, dy, ok := flowOffset(dir)
	if !ok {
		// Sink has no direction; fall back to the latitudinal cell size.
		return g.CellSize * metersPerDegLat
	}
	metersPerDegLon := metersPerDegLat * math.Cos(loc.Y*math.Pi/180)
	ddeg := g.CellSize
	ewMeters := float64(dx) * ddeg * metersPerDegLon
	nsMeters := float64(dy) * ddeg * metersPerDegLat
	return math.Hypot(ewMeters, nsMeters)
}

// getArea returns the area, in square meters, of the cell containing loc.
func (g *Grid) getArea(loc geom.Point) float64 {
	const metersPerDegLat = 111320.0
	metersPerDegLon := metersPerDegLat * math.Cos(loc.Y*math.Pi/180)
	return g.CellSize * metersPerDegLat * g.CellSize * metersPerDegLon
}

// Load reads an ESRI ASCII grid (.asc/.flt-style row-major text raster) at
// path: a six-line keyword header (ncols, nrows, xllcorner, yllcorner,
// cellsize, NODATA_value) followed by nrows lines of ncols
// whitespace-separated values, row 0 first (the northernmost row). This is
// the single raster format this package reads directly: a full GDAL-class
// codec stack belongs to an external preprocessing tool, not here.
func (g *Grid) Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ef5lake: opening raster %s: %w", path, err)
	}
	defer f.Close()
	return loadASCIIGrid(f)
}

func loadASCIIGrid(f *os.File) (*Grid, error) {
	sc := bufio.NewScanner(f)
	header := make(map[string]float64, 6)
	keys := []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value"}
	for _, want := range keys {
		if !sc.Scan() {
			return nil, fmt.Errorf("ef5lake: raster header ended early, expected %s", want)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("ef5lake: malformed raster header line %q", sc.Text())
		}
		key := strings.ToLower(fields[0])
		if key != want {
			return nil, fmt.Errorf("ef5lake: expected raster header key %q, got %q", want, key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("ef5lake: parsing raster header value for %s: %w", key, err)
		}
		header[key] = v
	}

	rows := int(header["nrows"])
	cols := int(header["ncols"])
	cellSize := header["cellsize"]
	noData := header["nodata_value"]
	extent := Extent{
		Left:   header["xllcorner"],
		Right:  header["xllcorner"] + float64(cols)*cellSize,
		Bottom: header["yllcorner"],
		Top:    header["yllcorner"] + float64(rows)*cellSize,
	}

	grid := NewGrid(rows, cols, cellSize, extent, noData)
	for y := 0; y < rows; y++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("ef5lake: raster ended early at row %d", y)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != cols {
			return nil, fmt.Errorf("ef5lake: raster row %d has %d values, expected %d", y, len(fields), cols)
		}
		for x, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("ef5lake: parsing raster value at row %d col %d: %w", y, x, err)
			}
			grid.Set(x, y, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ef5lake: reading raster: %w", err)
	}
	return grid, nil
}
