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

import "github.com/spatialmodel/ef5lake"

// ZeroRouting is a RoutingModel that produces an all-zero discharge
// vector every step. The real water-balance/routing model is an external
// collaborator; this stand-in lets `ef5lake run` exercise the
// full step pipeline (forcings, lake balance, checkpointing, output)
// against a basin manifest without one wired in.
type ZeroRouting struct{}

// Route implements ef5lake.RoutingModel.
func (ZeroRouting) Route(ns *ef5lake.NodeSet, precip, pet []float64, dtSeconds float64) ([]float64, error) {
	return make([]float64, len(ns.Nodes)), nil
}
