package ef5lake

import "testing"

func famTestGrid() (*Grid, *Grid) {
	extent := Extent{Left: 0, Right: 10, Top: 10, Bottom: 0}
	grid := NewGrid(10, 10, 1, extent, -9999)
	fam := NewGrid(10, 10, 1, extent, -9999)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			fam.Set(x, y, float64(x+y))
		}
	}
	return grid, fam
}

func TestLocateLakeMaxFAM(t *testing.T) {
	grid, fam := famTestGrid()
	fam.Set(5, 5, 1000) // a clear maximum near the lake's reported location
	lake := &Lake{Name: "Test", Lat: 4.5, Lon: 4.5}

	LocateLake(grid, fam, lake)

	if lake.Disabled {
		t.Fatal("lake unexpectedly disabled")
	}
	if lake.XCell != 5 || lake.YCell != 5 {
		t.Errorf("snapped to (%d, %d), want (5, 5)", lake.XCell, lake.YCell)
	}
}

func TestLocateLakeObservedFAM(t *testing.T) {
	grid, fam := famTestGrid()
	// fam at (4, 4) is 8, the lake's initial cell. Set a nearby cell to
	// an exact match for the lake's reported drainage area to ensure the
	// observed-FAM search finds it instead of the initial cell.
	cellArea := grid.getArea(grid.refLoc(4, 4))
	fam.Set(6, 4, 20)
	lake := &Lake{Name: "Test", Lat: 5.5, Lon: 4.5, ObsFAM: 20 * cellArea, ObsFAMSet: true}

	LocateLake(grid, fam, lake)

	if lake.Disabled {
		t.Fatal("lake unexpectedly disabled")
	}
	if lake.XCell != 6 || lake.YCell != 4 {
		t.Errorf("snapped to (%d, %d), want (6, 4)", lake.XCell, lake.YCell)
	}
}

func TestLocateLakeOutsideExtent(t *testing.T) {
	grid, fam := famTestGrid()
	lake := &Lake{Name: "Test", Lat: 500, Lon: 500}

	LocateLake(grid, fam, lake)

	if !lake.Disabled {
		t.Error("lake outside grid extent: Disabled = false, want true")
	}
}

func TestSnapMaxFAMMovesToHigherNeighbor(t *testing.T) {
	_, fam := famTestGrid()
	// (0, 0) has the lowest FAM of the grid; its neighbors are all
	// higher, so the search should move away from it.
	x, y := snapMaxFAM(fam, 0, 0)
	if x == 0 && y == 0 {
		t.Error("snapMaxFAM did not move off the lowest-FAM cell despite higher neighbors")
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.4, 1},
		{1.5, 2},
		{-1.4, -1},
		{-1.5, -2},
	}
	for _, c := range cases {
		if got := round(c.in); got != c.want {
			t.Errorf("round(%g) = %g, want %g", c.in, got, c.want)
		}
	}
}
