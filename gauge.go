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
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Gauge is an observation point: a named location with an observed time
// series, identified case-insensitively.
type Gauge struct {
	Name     string
	Lat, Lon float64
	X, Y     int
	Observed map[time.Time]float64
}

// GaugeTree is the upstream-gauge tree used for area-weighted basin
// averages. It is a vector-of-vectors keyed by gauge index rather than a
// graph of owning pointers, per the arena design in node.go: upstream[i]
// holds the gauge indices recorded upstream of gauge i. It is the full
// transitive closure when edges are added downstream-first; see
// AddUpstream.
type GaugeTree struct {
	gauges   []*Gauge
	byName   map[string]int
	upstream [][]int
}

// NewGaugeTree builds an empty tree over the given gauges.
func NewGaugeTree(gauges []*Gauge) *GaugeTree {
	t := &GaugeTree{
		gauges:   gauges,
		byName:   make(map[string]int, len(gauges)),
		upstream: make([][]int, len(gauges)),
	}
	for i, g := range gauges {
		t.byName[strings.ToLower(g.Name)] = i
	}
	return t
}

func (t *GaugeTree) indexOf(name string) (int, bool) {
	i, ok := t.byName[strings.ToLower(name)]
	return i, ok
}

func (t *GaugeTree) contains(list []int, idx int) bool {
	for _, v := range list {
		if v == idx {
			return true
		}
	}
	return false
}

// AddUpstream records u as directly upstream of d, and propagates the
// relationship transitively: u is appended to every gauge's upstream list
// that already contains d. Gauges already recorded upstream of u are not
// copied into d's list. It returns an error if (d, u) is already
// present: callers must not register a duplicate pair, since duplicates
// would double-count area in gaugeAverage.
func (t *GaugeTree) AddUpstream(downstream, upstream string) error {
	d, ok := t.indexOf(downstream)
	if !ok {
		return fmt.Errorf("ef5lake: unknown downstream gauge %q", downstream)
	}
	u, ok := t.indexOf(upstream)
	if !ok {
		return fmt.Errorf("ef5lake: unknown upstream gauge %q", upstream)
	}
	if t.contains(t.upstream[d], u) {
		return fmt.Errorf("ef5lake: %s is already recorded upstream of %s", upstream, downstream)
	}
	t.upstream[d] = append(t.upstream[d], u)
	for i := range t.upstream {
		if t.contains(t.upstream[i], d) && !t.contains(t.upstream[i], u) {
			t.upstream[i] = append(t.upstream[i], u)
		}
	}
	return nil
}

// GaugeAverage computes, for each gauge, the area-weighted average of
// perCellValue over every node that drains to that gauge directly or via
// an upstream gauge. A gauge with zero total drainage area yields NaN.
func (t *GaugeTree) GaugeAverage(ns *NodeSet, perCellValue []float64) []float64 {
	n := len(t.gauges)
	partialVal := make([]float64, n)
	partialArea := make([]float64, n)
	for i, node := range ns.Nodes {
		if node.GaugeIdx < 0 || node.GaugeIdx >= n {
			continue
		}
		partialVal[node.GaugeIdx] += perCellValue[i] * node.Area
		partialArea[node.GaugeIdx] += node.Area
	}
	avg := make([]float64, n)
	for i := range t.gauges {
		vals := make([]float64, 0, len(t.upstream[i])+1)
		areas := make([]float64, 0, len(t.upstream[i])+1)
		vals = append(vals, partialVal[i])
		areas = append(areas, partialArea[i])
		for _, j := range t.upstream[i] {
			vals = append(vals, partialVal[j])
			areas = append(areas, partialArea[j])
		}
		totalVal := floats.Sum(vals)
		totalArea := floats.Sum(areas)
		avg[i] = totalVal / totalArea
	}
	return avg
}

// GetGaugeArea returns the total upstream drainage area of each gauge, in
// the same units as GridNode.Area.
func (t *GaugeTree) GetGaugeArea(ns *NodeSet) []float64 {
	n := len(t.gauges)
	partialArea := make([]float64, n)
	for _, node := range ns.Nodes {
		if node.GaugeIdx < 0 || node.GaugeIdx >= n {
			continue
		}
		partialArea[node.GaugeIdx] += node.Area
	}
	area := make([]float64, n)
	for i := range t.gauges {
		areas := make([]float64, 0, len(t.upstream[i])+1)
		areas = append(areas, partialArea[i])
		for _, j := range t.upstream[i] {
			areas = append(areas, partialArea[j])
		}
		area[i] = floats.Sum(areas)
	}
	return area
}

// SaveRelationships writes the upstream adjacency as CSV lines
// "downstream,upstream", preceded by a timestamped comment header.
func (t *GaugeTree) SaveRelationships(w io.Writer, currentTime time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Gauge Relationships State File\n")
	fmt.Fprintf(bw, "# Generated: %s\n", currentTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(bw, "# Format: downstream_gauge_name,upstream_gauge_name\n")
	for i, g := range t.gauges {
		for _, j := range t.upstream[i] {
			fmt.Fprintf(bw, "%s,%s\n", g.Name, t.gauges[j].Name)
		}
	}
	return bw.Flush()
}

// LoadRelationships clears the existing tree and re-inserts edges parsed
// from r, skipping comment and blank lines.
func (t *GaugeTree) LoadRelationships(r io.Reader) error {
	for i := range t.upstream {
		t.upstream[i] = nil
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, ",", 2)
		if len(fields) != 2 {
			return fmt.Errorf("ef5lake: malformed gauge relationship line %q", line)
		}
		if err := t.AddUpstream(strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// LoadGaugesCSV reads a gauges table with columns name,lat,lon (synonyms
// latitude/longitude accepted), matching the column-synonym style of
// lake.go's table readers. Each gauge's (X, Y) is left zero; callers snap
// it onto a grid via gridLoc before passing the result to CarveNodes.
func LoadGaugesCSV(r io.Reader) ([]*Gauge, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ef5lake: reading gauges table header: %w", err)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}
	idx := buildColumnIndex(header)
	nameCol, ok := findColumn(idx, []string{"name", "id"})
	if !ok {
		return nil, fmt.Errorf("ef5lake: gauges table missing required column name/id")
	}
	latCol, ok := findColumn(idx, []string{"lat", "latitude"})
	if !ok {
		return nil, fmt.Errorf("ef5lake: gauges table missing required column lat/latitude")
	}
	lonCol, ok := findColumn(idx, []string{"lon", "longitude"})
	if !ok {
		return nil, fmt.Errorf("ef5lake: gauges table missing required column lon/longitude")
	}

	var gauges []*Gauge
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ef5lake: reading gauges table row: %w", err)
		}
		get := func(col int) string {
			if col < 0 || col >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[col])
		}
		lat, _ := strconv.ParseFloat(get(latCol), 64)
		lon, _ := strconv.ParseFloat(get(lonCol), 64)
		name := get(nameCol)
		if name == "" {
			return nil, fmt.Errorf("ef5lake: gauges table row missing name")
		}
		gauges = append(gauges, &Gauge{
			Name:     name,
			Lat:      lat,
			Lon:      lon,
			Observed: make(map[time.Time]float64),
		})
	}
	return gauges, nil
}

// SnapGauges resolves every gauge's (Lat, Lon) to a grid cell via
// gridLoc. A gauge outside the grid extent is a fatal configuration
// error, since an unsnapped gauge cannot own any node.
func SnapGauges(grid *Grid, gauges []*Gauge) error {
	for _, g := range gauges {
		x, y, err := grid.gridLoc(g.Lon, g.Lat)
		if err != nil {
			return fmt.Errorf("ef5lake: snapping gauge %q: %w", g.Name, err)
		}
		g.X, g.Y = x, y
	}
	return nil
}

// parseGaugeFloat is a small helper shared with lake.go-style table
// readers for tolerant numeric parsing with a zero-value fallback.
func parseGaugeFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
