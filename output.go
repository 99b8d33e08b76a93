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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVOutputSink is the concrete OutputSink: gauge averages are written
// one fresh file per output step, opened, written, and closed within the
// call with no long-lived writers across steps. Each lake's volume time
// series is a single growing file appended to, one line per output
// step, using the same encoding/csv style as lake.go's table readers.
type CSVOutputSink struct {
	Dir string
}

// NewCSVOutputSink returns an OutputSink that writes files under dir.
func NewCSVOutputSink(dir string) *CSVOutputSink {
	return &CSVOutputSink{Dir: dir}
}

// WriteGaugeAverages writes one row per gauge, "gaugeName,value", to a
// fresh file stamped with t. The file is opened, written, and closed
// within this call.
func (s *CSVOutputSink) WriteGaugeAverages(t time.Time, gauges []*Gauge, avg []float64) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(s.Dir, "gauge_averages_"+FormatTimestamp(t)+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating gauge averages file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"gauge", "value"}); err != nil {
		return fmt.Errorf("writing gauge averages header: %w", err)
	}
	for i, g := range gauges {
		v := ""
		if i < len(avg) {
			v = strconv.FormatFloat(avg[i], 'g', -1, 64)
		}
		if err := w.Write([]string{g.Name, v}); err != nil {
			return fmt.Errorf("writing gauge averages row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteLakeVolume appends a single "timestamp,storage,outflow" row to
// lake's per-run volume time series, creating the file with a header on
// first write.
func (s *CSVOutputSink) WriteLakeVolume(t time.Time, lake *Lake) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(s.Dir, "lake_volume_"+lake.Name+".csv")

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening lake volume file for %q: %w", lake.Name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write([]string{"timestamp", "storage", "outflow"}); err != nil {
			return fmt.Errorf("writing lake volume header: %w", err)
		}
	}
	row := []string{
		FormatTimestamp(t),
		strconv.FormatFloat(lake.Storage, 'g', -1, 64),
		strconv.FormatFloat(lake.Outflow, 'g', -1, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing lake volume row: %w", err)
	}
	w.Flush()
	return w.Error()
}
