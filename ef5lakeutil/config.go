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
	"time"

	"github.com/BurntSushi/toml"
)

// BasinManifest is the basin-level run manifest: grid paths, basin table
// locations, and step/output cadence. It is parsed as TOML.
type BasinManifest struct {
	GridFile string `toml:"grid_file"`
	DDMFile  string `toml:"ddm_file"`
	FAMFile  string `toml:"fam_file"`

	LakesTable               string `toml:"lakes_table"`
	InletsTable              string `toml:"inlets_table"`
	EngineeredDischargeTable string `toml:"engineered_discharge_table"`

	StateDir string `toml:"state_dir"`

	Begin     string  `toml:"begin"` // RFC3339
	End       string  `toml:"end"`   // RFC3339
	StepHours float64 `toml:"step_hours"`

	OutputEvery    int `toml:"output_every"`
	StateSaveEvery int `toml:"state_save_every"`
}

// Validate checks that the manifest names the files a run needs and that
// its time range parses, a fatal-at-load-time error.
func (m *BasinManifest) Validate() error {
	if m.GridFile == "" || m.DDMFile == "" || m.FAMFile == "" {
		return fmt.Errorf("ef5lakeutil: manifest must set grid_file, ddm_file, and fam_file")
	}
	if m.LakesTable == "" {
		return fmt.Errorf("ef5lakeutil: manifest must set lakes_table")
	}
	if m.StepHours <= 0 {
		return fmt.Errorf("ef5lakeutil: manifest step_hours must be positive")
	}
	if _, err := m.BeginTime(); err != nil {
		return fmt.Errorf("ef5lakeutil: parsing begin: %w", err)
	}
	if _, err := m.EndTime(); err != nil {
		return fmt.Errorf("ef5lakeutil: parsing end: %w", err)
	}
	return nil
}

// BeginTime parses Begin as RFC3339.
func (m *BasinManifest) BeginTime() (time.Time, error) {
	return time.Parse(time.RFC3339, m.Begin)
}

// EndTime parses End as RFC3339.
func (m *BasinManifest) EndTime() (time.Time, error) {
	return time.Parse(time.RFC3339, m.End)
}

// LoadManifest reads and validates a basin manifest from path.
func LoadManifest(path string) (*BasinManifest, error) {
	m := &BasinManifest{StepHours: 1, OutputEvery: 1, StateSaveEvery: 24}
	if _, err := toml.DecodeFile(path, m); err != nil {
		return nil, fmt.Errorf("ef5lakeutil: reading basin manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkOutputDir makes sure dir exists, creating it if necessary.
func checkOutputDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("ef5lakeutil: state_dir must be set")
	}
	return os.MkdirAll(dir, 0o755)
}
