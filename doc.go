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

// Package ef5lake implements the lake-routing coupling subsystem of a
// distributed hydrologic simulator: locating lakes on a flow-accumulation
// grid, discovering the cells that feed each lake, running a per-timestep
// two-part water balance for each lake, and driving lake outflow from an
// engineered-discharge schedule, a storage-overflow rule, or a
// linear-reservoir recession.
//
// Grid I/O codecs, projection math, calibration drivers, and the soil/snow
// water-balance and routing models themselves are external collaborators;
// this package consumes their output (a routed discharge vector) and
// overwrites it at each lake's outlet cell.
package ef5lake
