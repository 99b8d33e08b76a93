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
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrAborted is returned by Run.Simulate when the abort channel closes
// between step boundaries, so long runs terminate cleanly at a step
// boundary with a final state save.
var ErrAborted = errors.New("ef5lake: run aborted at step boundary")

// ForcingSource supplies per-step precipitation and PET resampled onto a
// node set. It is one of the capability-set interfaces that replace the
// source's class-inheritance polymorphism across WB/routing/snow model
// variants.
type ForcingSource interface {
	PrecipPET(t time.Time, ns *NodeSet) (precip, pet []float64, err error)
}

// RoutingModel computes the routed discharge vector for a step, given the
// node set and the step's precipitation and PET. It is an external
// collaborator: this package only consumes its output and
// overwrites it at lake cells.
type RoutingModel interface {
	Route(ns *NodeSet, precip, pet []float64, dtSeconds float64) (q []float64, err error)
}

// OutputSink receives the per-step outputs an output step emits: gauge
// area averages and, for lakes with OutputTS set, a storage time series
// point.
type OutputSink interface {
	WriteGaugeAverages(t time.Time, gauges []*Gauge, avg []float64) error
	WriteLakeVolume(t time.Time, lake *Lake) error
}

// Checkpointer persists and restores lake and basin state at step
// boundaries.
type Checkpointer interface {
	SaveLakeState(t time.Time, lake *Lake) error
	LoadLakeState(t time.Time, lake *Lake) error
	SaveBasinSnapshot(t time.Time, gauges *GaugeTree, lakes []*Lake) error
}

// Run drives the step loop between a begin and end time at a fixed step
// length, interleaving forcing updates, the externally supplied
// water-balance/routing model, and the lake Phase A/B balance.
type Run struct {
	Grid, DDM, FAM *Grid
	Nodes          *NodeSet
	Gauges         *GaugeTree
	Lakes          *LakeRegistry
	Engineered     *EngineeredDischargeTable

	Forcing    ForcingSource
	Routing    RoutingModel
	Output     OutputSink
	Checkpoint Checkpointer

	Begin, End time.Time
	StepHours  float64

	// OutputEvery and StateSaveEvery are step counts; a step index i is an
	// output (resp. state-save) step when i%OutputEvery == 0 (resp.
	// i%StateSaveEvery == 0). Zero disables the corresponding cadence.
	OutputEvery    int
	StateSaveEvery int

	// Abort, if non-nil, is polled once per step boundary; closing it
	// stops Simulate cleanly after a final state save.
	Abort <-chan struct{}

	// Q is the routed discharge vector from the most recently completed
	// step, one entry per node.
	Q []float64
}

// stepDuration returns the step length as a time.Duration.
func (r *Run) stepDuration() time.Duration {
	return time.Duration(r.StepHours * float64(time.Hour))
}

// stepSeconds returns the step length in seconds, the Δt used throughout
// the lake balance.
func (r *Run) stepSeconds() float64 {
	return r.StepHours * 3600.0
}

// hasLakesWithOutputTS reports whether any registered lake has OutputTS
// set, determining whether a lake-volume output stream should be opened
// at initialization.
func (r *Run) hasLakesWithOutputTS() bool {
	for _, l := range r.Lakes.All() {
		if l.OutputTS {
			return true
		}
	}
	return false
}

// Simulate runs the full step loop from Begin to End, checking Abort once
// per step boundary.
func (r *Run) Simulate() error {
	t := r.Begin
	i := 0
	for !t.After(r.End) {
		if r.Abort != nil {
			select {
			case <-r.Abort:
				r.finalCheckpoint(t)
				return ErrAborted
			default:
			}
		}
		if err := r.Step(t, i); err != nil {
			return fmt.Errorf("ef5lake: step %s: %w", FormatTimestamp(t), err)
		}
		i++
		t = t.Add(r.stepDuration())
	}
	return nil
}

func (r *Run) finalCheckpoint(t time.Time) {
	if r.Checkpoint == nil {
		return
	}
	if err := r.saveState(t); err != nil {
		logrus.WithError(err).Warn("ef5lake: final checkpoint on abort failed")
	}
}

// Step executes one full step of the ordered stage pipeline: forcings,
// vertical lake update, routing, horizontal lake update, then
// (conditionally) output and state-save. Each stage completes fully for
// all cells/lakes before the next begins, the ordering invariant that
// makes the Q-overwrite safe.
func (r *Run) Step(t time.Time, stepIndex int) error {
	precip, pet, err := r.Forcing.PrecipPET(t, r.Nodes)
	if err != nil {
		return fmt.Errorf("reading forcings: %w", err)
	}

	for _, lake := range r.Lakes.All() {
		if lake.Disabled {
			continue
		}
		precipMM, petMM := 0.0, 0.0
		if lake.NodeIndex >= 0 && lake.NodeIndex < len(precip) {
			precipMM = precip[lake.NodeIndex]
			petMM = pet[lake.NodeIndex]
		}
		lake.ApplyVerticalBalance(precipMM, petMM)
	}

	q, err := r.Routing.Route(r.Nodes, precip, pet, r.stepSeconds())
	if err != nil {
		return fmt.Errorf("routing: %w", err)
	}

	for _, lake := range r.Lakes.All() {
		if lake.Disabled {
			continue
		}
		lake.ApplyHorizontalBalance(r.Nodes, q, t, r.stepSeconds(), r.Engineered)
	}
	r.Q = q

	if r.OutputEvery > 0 && stepIndex%r.OutputEvery == 0 && r.Output != nil {
		if err := r.emitOutputs(t); err != nil {
			return fmt.Errorf("writing outputs: %w", err)
		}
	}

	if r.StateSaveEvery > 0 && stepIndex%r.StateSaveEvery == 0 && r.Checkpoint != nil {
		if err := r.saveState(t); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
	}

	return nil
}

func (r *Run) emitOutputs(t time.Time) error {
	avg := r.Gauges.GaugeAverage(r.Nodes, r.Q)
	if err := r.Output.WriteGaugeAverages(t, r.Nodes.Gauges, avg); err != nil {
		return err
	}
	for _, lake := range r.Lakes.All() {
		if !lake.OutputTS {
			continue
		}
		if err := r.Output.WriteLakeVolume(t, lake); err != nil {
			return err
		}
	}
	return nil
}

func (r *Run) saveState(t time.Time) error {
	for _, lake := range r.Lakes.All() {
		if lake.Disabled {
			continue
		}
		if err := r.Checkpoint.SaveLakeState(t, lake); err != nil {
			return err
		}
	}
	return r.Checkpoint.SaveBasinSnapshot(t, r.Gauges, r.Lakes.All())
}

// resampleToNodes is the embarrassingly data-parallel sweep that resamples
// a gridded field onto every node: it samples src at each node's cell
// location, bounded to GOMAXPROCS goroutines with an errgroup fork-join
// barrier before the result is handed to the next stage.
func resampleToNodes(src *Grid, ns *NodeSet) ([]float64, error) {
	out := make([]float64, len(ns.Nodes))
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > len(ns.Nodes) {
		nprocs = len(ns.Nodes)
	}
	if nprocs < 1 {
		nprocs = 1
	}

	var g errgroup.Group
	for p := 0; p < nprocs; p++ {
		p := p
		g.Go(func() error {
			for i := p; i < len(ns.Nodes); i += nprocs {
				n := ns.Nodes[i]
				if !src.InBounds(n.X, n.Y) {
					return fmt.Errorf("node %d at (%d,%d) is outside forcing grid", i, n.X, n.Y)
				}
				v := src.At(n.X, n.Y)
				if v == src.NoData {
					v = 0
				}
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GridForcingSource is a ForcingSource backed by time-indexed precip and
// PET grids, resampled onto the node set each step via resampleToNodes.
type GridForcingSource struct {
	Precip map[time.Time]*Grid
	PET    map[time.Time]*Grid
}

// PrecipPET implements ForcingSource.
func (s *GridForcingSource) PrecipPET(t time.Time, ns *NodeSet) ([]float64, []float64, error) {
	pg, ok := s.Precip[t]
	if !ok {
		return nil, nil, fmt.Errorf("no precipitation grid for %s", FormatTimestamp(t))
	}
	eg, ok := s.PET[t]
	if !ok {
		return nil, nil, fmt.Errorf("no PET grid for %s", FormatTimestamp(t))
	}
	precip, err := resampleToNodes(pg, ns)
	if err != nil {
		return nil, nil, fmt.Errorf("resampling precipitation: %w", err)
	}
	pet, err := resampleToNodes(eg, ns)
	if err != nil {
		return nil, nil, fmt.Errorf("resampling PET: %w", err)
	}
	return precip, pet, nil
}
