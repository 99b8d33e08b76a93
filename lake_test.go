package ef5lake

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestCalibrationBoundsValidate(t *testing.T) {
	cases := []struct {
		name    string
		bounds  *CalibrationBounds
		wantErr bool
	}{
		{"nil bounds", nil, false},
		{"valid", &CalibrationBounds{KMin: 1, KMax: 10, ThVolumeMin: 1, ThVolumeMax: 10}, false},
		{"zero max is unset, skipped", &CalibrationBounds{KMin: 1, KMax: 0}, false},
		{"inverted K", &CalibrationBounds{KMin: 10, KMax: 1}, true},
		{"inverted ThVolume", &CalibrationBounds{ThVolumeMin: 10, ThVolumeMax: 1}, true},
	}
	for _, c := range cases {
		err := c.bounds.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestInletObservedAt(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	in := &Inlet{Observed: map[time.Time]float64{t0: 12.5}}
	if v := in.ObservedAt(t0); v != 12.5 {
		t.Errorf("ObservedAt(t0) = %g, want 12.5", v)
	}
	if v := in.ObservedAt(t0.Add(time.Hour)); !math.IsNaN(v) {
		t.Errorf("ObservedAt(missing) = %g, want NaN", v)
	}
}

func TestLakeRegistryAddGet(t *testing.T) {
	r := NewLakeRegistry()
	if err := r.Add(&Lake{Name: "Tahoe"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(&Lake{Name: "tahoe"}); err == nil {
		t.Error("duplicate (case-insensitive) name: got nil error, want non-nil")
	}
	l, ok := r.Get("TAHOE")
	if !ok || l.Name != "Tahoe" {
		t.Errorf("Get(\"TAHOE\") = %v, %v, want Tahoe lake, true", l, ok)
	}
	if _, ok := r.Get("Superior"); ok {
		t.Error("Get of unregistered name: got true, want false")
	}
}

func TestLakeRegistryAllPreservesOrder(t *testing.T) {
	r := NewLakeRegistry()
	names := []string{"C", "A", "B"}
	for _, n := range names {
		if err := r.Add(&Lake{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	all := r.All()
	for i, l := range all {
		if l.Name != names[i] {
			t.Errorf("All()[%d] = %s, want %s", i, l.Name, names[i])
		}
	}
}

func TestLoadLakesCSV(t *testing.T) {
	csv := "name,lat,lon,th_volume,area,klake,obsfam,output_ts\n" +
		"Tahoe,39.1,-120.0,0.5,0.1,48,25,yes\n" +
		"Mono,38.0,-119.0,,,,,\n"
	reg, err := LoadLakesCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadLakesCSV: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("got %d lakes, want 2", len(reg.All()))
	}
	tahoe, ok := reg.Get("Tahoe")
	if !ok {
		t.Fatal("Tahoe not found")
	}
	if tahoe.ThVolume != 0.5*1e9 {
		t.Errorf("ThVolume = %g, want %g", tahoe.ThVolume, 0.5*1e9)
	}
	if tahoe.Area != 0.1*1e6 {
		t.Errorf("Area = %g, want %g", tahoe.Area, 0.1*1e6)
	}
	if tahoe.K != 48 {
		t.Errorf("K = %g, want 48", tahoe.K)
	}
	if !tahoe.ObsFAMSet || tahoe.ObsFAM != 25 {
		t.Errorf("ObsFAM = %g, set=%v, want 25, true", tahoe.ObsFAM, tahoe.ObsFAMSet)
	}
	if !tahoe.OutputTS {
		t.Error("OutputTS = false, want true")
	}

	mono, ok := reg.Get("Mono")
	if !ok {
		t.Fatal("Mono not found")
	}
	if mono.K != 24.0 {
		t.Errorf("Mono K default = %g, want 24", mono.K)
	}
	if mono.ObsFAMSet {
		t.Error("Mono ObsFAMSet = true, want false (blank field)")
	}
	if mono.NodeIndex != -1 {
		t.Errorf("Mono NodeIndex = %d, want -1", mono.NodeIndex)
	}
}

func TestLoadLakesCSVMissingColumn(t *testing.T) {
	csv := "lat,lon\n1,2\n"
	if _, err := LoadLakesCSV(strings.NewReader(csv)); err == nil {
		t.Error("missing name column: got nil error, want non-nil")
	}
}

func TestLoadLakesCSVMissingName(t *testing.T) {
	csv := "name,lat,lon\n,1,2\n"
	if _, err := LoadLakesCSV(strings.NewReader(csv)); err == nil {
		t.Error("blank name field: got nil error, want non-nil")
	}
}

func TestLoadInletsCSV(t *testing.T) {
	csv := "name,lakeName,lat,lon\nInlet1,Tahoe,39.2,-120.1\n"
	inlets, err := LoadInletsCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadInletsCSV: %v", err)
	}
	if len(inlets) != 1 {
		t.Fatalf("got %d inlets, want 1", len(inlets))
	}
	if inlets[0].Name != "Inlet1" || inlets[0].LakeName != "Tahoe" {
		t.Errorf("inlet = %+v, want Name=Inlet1, LakeName=Tahoe", inlets[0])
	}
}

func TestEngineeredDischargeTable(t *testing.T) {
	csv := "time,Tahoe,Mono\n20200101_0000,12.5,0\n"
	table, err := LoadEngineeredDischargeCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadEngineeredDischargeCSV: %v", err)
	}
	if !table.Bound("tahoe") {
		t.Error("Bound(\"tahoe\") = false, want true")
	}
	if table.Bound("superior") {
		t.Error("Bound(\"superior\") = true, want false")
	}
	if v := table.Lookup("Tahoe", "20200101_0000"); v != 12.5 {
		t.Errorf("Lookup = %g, want 12.5", v)
	}
	if v := table.Lookup("Tahoe", "20200102_0000"); v != 0 {
		t.Errorf("Lookup of missing timestamp = %g, want 0", v)
	}
	var nilTable *EngineeredDischargeTable
	if nilTable.Bound("Tahoe") {
		t.Error("nil table Bound() = true, want false")
	}
	if v := nilTable.Lookup("Tahoe", "20200101_0000"); v != 0 {
		t.Errorf("nil table Lookup() = %g, want 0", v)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2020, 3, 4, 15, 30, 0, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "20200304_1530" {
		t.Errorf("FormatTimestamp = %s, want 20200304_1530", got)
	}
}
