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
	"time"

	"github.com/spatialmodel/ef5lake"
)

// ZeroForcing is a ForcingSource that supplies zero precipitation and PET
// every step, a stand-in for the gridded met product a real deployment
// would wire in via ef5lake.GridForcingSource: forcing fields are
// consumed, not produced, by this package.
type ZeroForcing struct{}

// PrecipPET implements ef5lake.ForcingSource.
func (ZeroForcing) PrecipPET(t time.Time, ns *ef5lake.NodeSet) ([]float64, []float64, error) {
	return make([]float64, len(ns.Nodes)), make([]float64, len(ns.Nodes)), nil
}
