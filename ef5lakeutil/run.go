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

package ef5lakeutil

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ef5lake"
)

// Basin holds every piece of state BuildBasin assembles from a manifest:
// the grids, carved node set, gauge tree, lake registry and the
// engineered discharge table shared across all lakes.
type Basin struct {
	Grid, DDM, FAM *ef5lake.Grid
	Nodes          *ef5lake.NodeSet
	Gauges         *ef5lake.GaugeTree
	Lakes          *ef5lake.LakeRegistry
	Engineered     *ef5lake.EngineeredDischargeTable
}

// BuildBasin loads the grids and tables a manifest names, carves the node
// set, locates every lake, and discovers each lake's upstream neighbors.
// It is the CLI's "carve" step: nodes, gauges, and the gauge tree are
// all built here, before any stepping begins.
func BuildBasin(m *BasinManifest, gaugesTable string) (*Basin, error) {
	var loader ef5lake.Grid
	grid, err := loader.Load(m.GridFile)
	if err != nil {
		return nil, fmt.Errorf("ef5lakeutil: loading grid: %w", err)
	}
	ddm, err := grid.Load(m.DDMFile)
	if err != nil {
		return nil, fmt.Errorf("ef5lakeutil: loading DDM: %w", err)
	}
	fam, err := grid.Load(m.FAMFile)
	if err != nil {
		return nil, fmt.Errorf("ef5lakeutil: loading FAM: %w", err)
	}

	var gauges []*ef5lake.Gauge
	if gaugesTable != "" {
		gf, err := os.Open(gaugesTable)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: opening gauges table: %w", err)
		}
		defer gf.Close()
		gauges, err = ef5lake.LoadGaugesCSV(gf)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: loading gauges table: %w", err)
		}
		if err := ef5lake.SnapGauges(grid, gauges); err != nil {
			return nil, err
		}
	}

	nodes := ef5lake.CarveNodes(fam, gauges)
	gaugeTree := ef5lake.NewGaugeTree(gauges)

	lf, err := os.Open(m.LakesTable)
	if err != nil {
		return nil, fmt.Errorf("ef5lakeutil: opening lakes table: %w", err)
	}
	defer lf.Close()
	lakes, err := ef5lake.LoadLakesCSV(lf)
	if err != nil {
		return nil, fmt.Errorf("ef5lakeutil: loading lakes table: %w", err)
	}

	var inlets []*ef5lake.Inlet
	if m.InletsTable != "" {
		inf, err := os.Open(m.InletsTable)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: opening inlets table: %w", err)
		}
		defer inf.Close()
		inlets, err = ef5lake.LoadInletsCSV(inf)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: loading inlets table: %w", err)
		}
	}
	for _, in := range inlets {
		lake, ok := lakes.Get(in.LakeName)
		if !ok {
			return nil, fmt.Errorf("ef5lakeutil: inlet %q names unknown lake %q", in.Name, in.LakeName)
		}
		lake.Inlets = append(lake.Inlets, in)
	}

	var engineered *ef5lake.EngineeredDischargeTable
	if m.EngineeredDischargeTable != "" {
		ef, err := os.Open(m.EngineeredDischargeTable)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: opening engineered discharge table: %w", err)
		}
		defer ef.Close()
		engineered, err = ef5lake.LoadEngineeredDischargeCSV(ef)
		if err != nil {
			return nil, fmt.Errorf("ef5lakeutil: loading engineered discharge table: %w", err)
		}
	}

	for _, lake := range lakes.All() {
		ef5lake.LocateLake(grid, fam, lake)
		if lake.Disabled {
			continue
		}
		ef5lake.FindUpstreamNeighbors(ddm, lake)
		lake.NodeIndex = nodes.IndexOf(lake.XCell, lake.YCell)
		if lake.NodeIndex < 0 {
			logrus.WithField("lake", lake.Name).Warn("ef5lakeutil: lake cell is not part of the active node set")
		}
	}

	return &Basin{
		Grid:       grid,
		DDM:        ddm,
		FAM:        fam,
		Nodes:      nodes,
		Gauges:     gaugeTree,
		Lakes:      lakes,
		Engineered: engineered,
	}, nil
}

// NewRun assembles an ef5lake.Run from a basin and manifest, wired to
// forcing, routing, output, and checkpoint collaborators the caller
// supplies: the water-balance/routing model and raster I/O codecs are
// external collaborators this package does not own.
func NewRun(basin *Basin, m *BasinManifest, forcing ef5lake.ForcingSource, routing ef5lake.RoutingModel) (*ef5lake.Run, error) {
	begin, err := m.BeginTime()
	if err != nil {
		return nil, err
	}
	end, err := m.EndTime()
	if err != nil {
		return nil, err
	}
	if err := checkOutputDir(m.StateDir); err != nil {
		return nil, err
	}

	return &ef5lake.Run{
		Grid:           basin.Grid,
		DDM:            basin.DDM,
		FAM:            basin.FAM,
		Nodes:          basin.Nodes,
		Gauges:         basin.Gauges,
		Lakes:          basin.Lakes,
		Engineered:     basin.Engineered,
		Forcing:        forcing,
		Routing:        routing,
		Output:         ef5lake.NewCSVOutputSink(m.StateDir),
		Checkpoint:     ef5lake.NewRasterCheckpointer(basin.Grid, m.StateDir),
		Begin:          begin,
		End:            end,
		StepHours:      m.StepHours,
		OutputEvery:    m.OutputEvery,
		StateSaveEvery: m.StateSaveEvery,
	}, nil
}
