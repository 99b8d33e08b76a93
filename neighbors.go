package ef5lake

// FindUpstreamNeighbors enumerates the 8-neighbors of lake's snapped cell
// that count as draining into it, and stores the result on
// lake.UpstreamNeighbors: a neighbor at (x+dx, y+dy) is reported when
// flowOffset of its DDM code is exactly (dx, dy). It is run once, after
// LocateLake.
func FindUpstreamNeighbors(ddm *Grid, lake *Lake) {
	lake.UpstreamNeighbors = nil
	x, y := lake.XCell, lake.YCell

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if !ddm.InBounds(nx, ny) {
				continue
			}
			dir := FlowDir(ddm.At(nx, ny))
			fdx, fdy, ok := flowOffset(dir)
			if !ok {
				continue
			}
			if fdx == dx && fdy == dy {
				lake.UpstreamNeighbors = append(lake.UpstreamNeighbors, GridLoc{X: nx, Y: ny})
			}
		}
	}
}
