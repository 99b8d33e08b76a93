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
	"os"
	"path/filepath"
	"testing"
)

func validManifest() *BasinManifest {
	return &BasinManifest{
		GridFile:   "grid.asc",
		DDMFile:    "ddm.asc",
		FAMFile:    "fam.asc",
		LakesTable: "lakes.csv",
		Begin:      "2020-01-01T00:00:00Z",
		End:        "2020-01-02T00:00:00Z",
		StepHours:  1,
	}
}

func TestBasinManifestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*BasinManifest)
		wantErr bool
	}{
		{"valid", func(m *BasinManifest) {}, false},
		{"missing grid file", func(m *BasinManifest) { m.GridFile = "" }, true},
		{"missing lakes table", func(m *BasinManifest) { m.LakesTable = "" }, true},
		{"zero step hours", func(m *BasinManifest) { m.StepHours = 0 }, true},
		{"negative step hours", func(m *BasinManifest) { m.StepHours = -1 }, true},
		{"unparseable begin", func(m *BasinManifest) { m.Begin = "not-a-time" }, true},
		{"unparseable end", func(m *BasinManifest) { m.End = "not-a-time" }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := validManifest()
			c.mutate(m)
			err := m.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestBasinManifestBeginEndTime(t *testing.T) {
	m := validManifest()
	begin, err := m.BeginTime()
	if err != nil {
		t.Fatalf("BeginTime: %v", err)
	}
	if begin.Year() != 2020 || begin.Month() != 1 || begin.Day() != 1 {
		t.Errorf("BeginTime = %v, want 2020-01-01", begin)
	}
	end, err := m.EndTime()
	if err != nil {
		t.Fatalf("EndTime: %v", err)
	}
	if !end.After(begin) {
		t.Errorf("EndTime %v is not after BeginTime %v", end, begin)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basin.toml")
	content := `
grid_file = "grid.asc"
ddm_file = "ddm.asc"
fam_file = "fam.asc"
lakes_table = "lakes.csv"
begin = "2020-01-01T00:00:00Z"
end = "2020-01-02T00:00:00Z"
step_hours = 6
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.StepHours != 6 {
		t.Errorf("StepHours = %g, want 6", m.StepHours)
	}
	if m.OutputEvery != 1 || m.StateSaveEvery != 24 {
		t.Errorf("OutputEvery/StateSaveEvery = %d/%d, want defaults 1/24", m.OutputEvery, m.StateSaveEvery)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "nonexistent.toml")); err == nil {
		t.Error("missing manifest file: got nil error, want non-nil")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basin.toml")
	if err := os.WriteFile(path, []byte("begin = \"2020-01-01T00:00:00Z\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("manifest missing required fields: got nil error, want non-nil")
	}
}

func TestCheckOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if err := checkOutputDir(dir); err != nil {
		t.Fatalf("checkOutputDir: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("checkOutputDir did not create %s: %v", dir, err)
	}
}

func TestCheckOutputDirEmpty(t *testing.T) {
	if err := checkOutputDir(""); err == nil {
		t.Error("empty dir: got nil error, want non-nil")
	}
}
