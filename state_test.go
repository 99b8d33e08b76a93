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
	"os"
	"strings"
	"testing"
	"time"
)

func stateTestGrid() *Grid {
	return NewGrid(4, 4, 1, Extent{Left: 0, Right: 4, Top: 4, Bottom: 0}, -9999)
}

func TestRasterCheckpointerSaveLoadLakeState(t *testing.T) {
	dir := t.TempDir()
	grid := stateTestGrid()
	c := NewRasterCheckpointer(grid, dir)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	lake := &Lake{Name: "Tahoe", XCell: 1, YCell: 2, Storage: 123, Outflow: 4.5}
	if err := c.SaveLakeState(t0, lake); err != nil {
		t.Fatalf("SaveLakeState: %v", err)
	}
	if err := c.SaveBasinSnapshot(t0, nil, []*Lake{lake}); err != nil {
		t.Fatalf("SaveBasinSnapshot: %v", err)
	}

	fresh := &Lake{Name: "Tahoe", XCell: 1, YCell: 2, ThVolume: 999}
	c2 := NewRasterCheckpointer(grid, dir)
	if err := c2.LoadLakeState(t0, fresh); err != nil {
		t.Fatalf("LoadLakeState: %v", err)
	}
	if !closeEnough(fresh.Storage, 123, epsilon) {
		t.Errorf("Storage = %g, want 123", fresh.Storage)
	}
	if !closeEnough(fresh.Outflow, 4.5, epsilon) {
		t.Errorf("Outflow = %g, want 4.5", fresh.Outflow)
	}
}

func TestRasterCheckpointerSaveLakeStateSkipsDisabled(t *testing.T) {
	dir := t.TempDir()
	c := NewRasterCheckpointer(stateTestGrid(), dir)
	lake := &Lake{Name: "Disabled", Disabled: true}
	if err := c.SaveLakeState(time.Now(), lake); err != nil {
		t.Errorf("SaveLakeState on a disabled lake: %v, want nil", err)
	}
}

func TestRasterCheckpointerSaveLakeStateOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	c := NewRasterCheckpointer(stateTestGrid(), dir)
	lake := &Lake{Name: "OOB", XCell: 99, YCell: 99}
	if err := c.SaveLakeState(time.Now(), lake); err == nil {
		t.Error("out-of-bounds lake cell: got nil error, want non-nil")
	}
}

func TestRasterCheckpointerLoadLakeStateMissingFile(t *testing.T) {
	dir := t.TempDir()
	c := NewRasterCheckpointer(stateTestGrid(), dir)
	lake := &Lake{Name: "Tahoe", ThVolume: 500}
	if err := c.LoadLakeState(time.Now(), lake); err != nil {
		t.Fatalf("LoadLakeState: %v", err)
	}
	if lake.Storage != 500 {
		t.Errorf("Storage = %g, want ThVolume default 500", lake.Storage)
	}
	if lake.Outflow != 0 {
		t.Errorf("Outflow = %g, want 0", lake.Outflow)
	}
}

func TestRasterCheckpointerLoadLakeStateUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	grid := stateTestGrid()
	c := NewRasterCheckpointer(grid, dir)
	t0 := time.Now()
	if err := os.WriteFile(c.storagePath(t0), []byte("not a netcdf file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.outflowPath(t0), []byte("not a netcdf file"), 0o644); err != nil {
		t.Fatal(err)
	}
	lake := &Lake{Name: "Tahoe", ThVolume: 700}
	if err := c.LoadLakeState(t0, lake); err != nil {
		t.Fatalf("LoadLakeState: %v", err)
	}
	if lake.Storage != 700 {
		t.Errorf("Storage = %g, want ThVolume default 700 (soft failure on bad file)", lake.Storage)
	}
}

func TestSaveBasinSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	grid := stateTestGrid()
	c := NewRasterCheckpointer(grid, dir)
	t0 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	gauges := []*Gauge{{Name: "Upper"}, {Name: "Lower"}}
	tree := NewGaugeTree(gauges)
	if err := tree.AddUpstream("Lower", "Upper"); err != nil {
		t.Fatal(err)
	}

	lake := &Lake{Name: "Tahoe", UpstreamNeighbors: []GridLoc{{X: 1, Y: 1}, {X: 2, Y: 1}}}
	lakes := NewLakeRegistry()
	if err := lakes.Add(lake); err != nil {
		t.Fatal(err)
	}

	if err := c.SaveBasinSnapshot(t0, tree, lakes.All()); err != nil {
		t.Fatalf("SaveBasinSnapshot: %v", err)
	}

	freshGauges := []*Gauge{{Name: "Upper"}, {Name: "Lower"}}
	freshTree := NewGaugeTree(freshGauges)
	freshLake := &Lake{Name: "Tahoe"}
	freshLakes := NewLakeRegistry()
	if err := freshLakes.Add(freshLake); err != nil {
		t.Fatal(err)
	}

	if err := LoadBasinSnapshot(t0, dir, freshTree, freshLakes); err != nil {
		t.Fatalf("LoadBasinSnapshot: %v", err)
	}

	lowerIdx, _ := freshTree.indexOf("Lower")
	upperIdx, _ := freshTree.indexOf("Upper")
	if !freshTree.contains(freshTree.upstream[lowerIdx], upperIdx) {
		t.Error("reloaded gauge tree lost the Lower -> Upper relationship")
	}
	if len(freshLake.UpstreamNeighbors) != 2 {
		t.Fatalf("reloaded lake has %d upstream neighbors, want 2", len(freshLake.UpstreamNeighbors))
	}
}

func TestLoadBasinSnapshotUnknownLakeErrors(t *testing.T) {
	dir := t.TempDir()
	grid := stateTestGrid()
	c := NewRasterCheckpointer(grid, dir)
	t0 := time.Now()

	lake := &Lake{Name: "Tahoe", UpstreamNeighbors: []GridLoc{{X: 1, Y: 1}}}
	if err := c.saveLakeTopology(t0, []*Lake{lake}); err != nil {
		t.Fatal(err)
	}

	emptyLakes := NewLakeRegistry()
	if err := LoadBasinSnapshot(t0, dir, nil, emptyLakes); err == nil {
		t.Error("topology file names an unregistered lake: got nil error, want non-nil")
	}
}

func TestLoadBasinSnapshotNoTopologyFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	if err := LoadBasinSnapshot(time.Now(), dir, nil, NewLakeRegistry()); err != nil {
		t.Errorf("missing topology file: err = %v, want nil", err)
	}
}

func TestSaveLakeTopologyFormat(t *testing.T) {
	dir := t.TempDir()
	c := NewRasterCheckpointer(stateTestGrid(), dir)
	t0 := time.Now()
	lake := &Lake{Name: "Tahoe", UpstreamNeighbors: []GridLoc{{X: 3, Y: 4}}}
	if err := c.saveLakeTopology(t0, []*Lake{lake}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(c.topologyPath(t0))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Tahoe,3,4") {
		t.Errorf("topology file %q does not contain expected row Tahoe,3,4", string(b))
	}
}
