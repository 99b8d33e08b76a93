package ef5lake

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampFormat is the exact layout used to key engineered-discharge
// lookups. It must not be replaced with a locale-dependent strftime
// directive.
const timestampFormat = "20060102_1504"

// FormatTimestamp renders t in the engineered-discharge key format
// YYYYMMDD_HHmm.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampFormat)
}

// CalibrationBounds records the valid range for a lake's calibratable
// parameters. It is configuration intake only: validating these bounds at
// load time is in scope, but searching within them (calibration itself)
// is an external collaborator's job.
type CalibrationBounds struct {
	KMin, KMax               float64
	ThVolumeMin, ThVolumeMax float64
}

// Validate returns an error if any configured min/max pair is inverted, a
// fatal error at validation time.
func (b *CalibrationBounds) Validate() error {
	if b == nil {
		return nil
	}
	if b.KMin >= b.KMax && b.KMax != 0 {
		return fmt.Errorf("ef5lake: calibration bounds invalid: KMin (%g) >= KMax (%g)", b.KMin, b.KMax)
	}
	if b.ThVolumeMin >= b.ThVolumeMax && b.ThVolumeMax != 0 {
		return fmt.Errorf("ef5lake: calibration bounds invalid: ThVolumeMin (%g) >= ThVolumeMax (%g)", b.ThVolumeMin, b.ThVolumeMax)
	}
	return nil
}

// Inlet is a boundary-condition cell whose discharge is an observed time
// series, replacing routed inflow for one lake.
type Inlet struct {
	Name     string
	LakeName string
	Lat, Lon float64
	X, Y     int
	Observed map[time.Time]float64
}

// ObservedAt returns the observed discharge at t, or NaN if there is no
// observation for that timestamp, a soft lookup-miss.
func (in *Inlet) ObservedAt(t time.Time) float64 {
	if v, ok := in.Observed[t]; ok {
		return v
	}
	return math.NaN()
}

// Lake is a single reservoir's configuration and dynamic state, keyed by
// its unique (case-insensitive) name.
type Lake struct {
	Name string

	Lat, Lon  float64
	Area      float64 // m^2
	ThVolume  float64 // m^3
	K         float64 // hours
	ObsFAM    float64 // cells or km^2, pre-conversion
	ObsFAMSet bool
	OutputTS  bool
	WMFlag    bool

	Bounds *CalibrationBounds

	// Dynamic state, mutated every step.
	Storage float64 // m^3
	Outflow float64 // m^3/s
	Inflow  float64 // m^3/s
	Precip  float64 // mm, last step
	Evap    float64 // mm, last step

	// Derived at configuration/locate time.
	XCell, YCell      int
	NodeIndex         int // -1 if not yet resolved, or disabled
	UpstreamNeighbors []GridLoc
	Inlets            []*Inlet
	Disabled          bool
}

// GridLoc is a grid cell coordinate.
type GridLoc struct {
	X, Y int
}

// LakeRegistry is the canonical collection of lake records for a basin,
// keyed by case-insensitive name.
type LakeRegistry struct {
	byName map[string]*Lake
	order  []string
}

// NewLakeRegistry returns an empty registry.
func NewLakeRegistry() *LakeRegistry {
	return &LakeRegistry{byName: make(map[string]*Lake)}
}

// Add registers lake, keyed by its name. It returns an error if a lake
// with that name (case-insensitive) is already registered.
func (r *LakeRegistry) Add(l *Lake) error {
	key := strings.ToLower(l.Name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("ef5lake: duplicate lake name %q", l.Name)
	}
	r.byName[key] = l
	r.order = append(r.order, key)
	return nil
}

// Get looks up a lake by name, case-insensitively.
func (r *LakeRegistry) Get(name string) (*Lake, bool) {
	l, ok := r.byName[strings.ToLower(name)]
	return l, ok
}

// All returns the registered lakes in registration order.
func (r *LakeRegistry) All() []*Lake {
	out := make([]*Lake, len(r.order))
	for i, k := range r.order {
		out[i] = r.byName[k]
	}
	return out
}

// lakesColumns maps canonical column names to the header synonyms
// accepted in a lakes table.
var lakesColumns = map[string][]string{
	"name": {"name", "id"},
	"lat": {"lat", "latitude"},
	"lon": {"lon", "longitude"},
	"thvolume": {"th_volume", "volume", "thvolume"},
	"area": {"area"},
	"klake": {"klake", "retention_constant"},
	"obsfam": {"obsfam", "obs_fam", "obsflowaccum"},
	"outputts": {"outputts", "output_ts", "output_timeseries"},
}

func buildColumnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func findColumn(idx map[string]int, synonyms []string) (int, bool) {
	for _, s := range synonyms {
		if i, ok := idx[s]; ok {
			return i, true
		}
	}
	return -1, false
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, string(rune(0xFEFF)))
}

// LoadLakesCSV reads a lakes table: comma-separated, UTF-8,
// optional BOM, case-insensitive header with synonyms. th_volume and area
// are read in km^3/km^2 and converted to m^3/m^2 at ingestion, a fixed
// table convention rather than a parsed unit.
func LoadLakesCSV(r io.Reader) (*LakeRegistry, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ef5lake: reading lakes table header: %w", err)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}
	idx := buildColumnIndex(header)

	nameCol, ok := findColumn(idx, lakesColumns["name"])
	if !ok {
		return nil, fmt.Errorf("ef5lake: lakes table missing required column name/id")
	}
	latCol, ok := findColumn(idx, lakesColumns["lat"])
	if !ok {
		return nil, fmt.Errorf("ef5lake: lakes table missing required column lat/latitude")
	}
	lonCol, ok := findColumn(idx, lakesColumns["lon"])
	if !ok {
		return nil, fmt.Errorf("ef5lake: lakes table missing required column lon/longitude")
	}
	thVolCol, hasThVol := findColumn(idx, lakesColumns["thvolume"])
	areaCol, hasArea := findColumn(idx, lakesColumns["area"])
	klakeCol, hasKlake := findColumn(idx, lakesColumns["klake"])
	obsFAMCol, hasObsFAM := findColumn(idx, lakesColumns["obsfam"])
	outputTSCol, hasOutputTS := findColumn(idx, lakesColumns["outputts"])

	reg := NewLakeRegistry()
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ef5lake: reading lakes table row: %w", err)
		}
		field := func(col int, ok bool) string {
			if !ok || col >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[col])
		}
		lat, _ := strconv.ParseFloat(field(latCol, true), 64)
		lon, _ := strconv.ParseFloat(field(lonCol, true), 64)
		l := &Lake{
			Name:      field(nameCol, true),
			Lat:       lat,
			Lon:       lon,
			K:         24.0,
			NodeIndex: -1,
		}
		if hasThVol {
			v, _ := strconv.ParseFloat(field(thVolCol, hasThVol), 64)
			l.ThVolume = v * 1e9
		}
		if hasArea {
			v, _ := strconv.ParseFloat(field(areaCol, hasArea), 64)
			l.Area = v * 1e6
		}
		if hasKlake {
			if v, err := strconv.ParseFloat(field(klakeCol, hasKlake), 64); err == nil {
				l.K = v
			}
		}
		if hasObsFAM {
			if s := field(obsFAMCol, hasObsFAM); s != "" {
				if v, err := strconv.ParseFloat(s, 64); err == nil {
					l.ObsFAM = v
					l.ObsFAMSet = true
				}
			}
		}
		if hasOutputTS {
			l.OutputTS = truthy(field(outputTSCol, hasOutputTS))
		}
		if l.Name == "" {
			return nil, fmt.Errorf("ef5lake: lakes table row missing name")
		}
		if err := reg.Add(l); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadInletsCSV reads an inlets table with columns name,lakename,lat,lon.
// Time series are not loaded here; callers load per-inlet observation
// series separately and assign them to Inlet.Observed.
func LoadInletsCSV(r io.Reader) ([]*Inlet, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ef5lake: reading inlets table header: %w", err)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}
	idx := buildColumnIndex(header)
	nameCol, ok := findColumn(idx, []string{"name", "id"})
	if !ok {
		return nil, fmt.Errorf("ef5lake: inlets table missing required column name/id")
	}
	lakeCol, ok := findColumn(idx, []string{"lakename", "lake_name", "lake"})
	if !ok {
		return nil, fmt.Errorf("ef5lake: inlets table missing required column lakeName")
	}
	latCol, _ := findColumn(idx, []string{"lat", "latitude"})
	lonCol, _ := findColumn(idx, []string{"lon", "longitude"})

	var inlets []*Inlet
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ef5lake: reading inlets table row: %w", err)
		}
		get := func(col int) string {
			if col < 0 || col >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[col])
		}
		lat, _ := strconv.ParseFloat(get(latCol), 64)
		lon, _ := strconv.ParseFloat(get(lonCol), 64)
		inlets = append(inlets, &Inlet{
			Name:     get(nameCol),
			LakeName: get(lakeCol),
			Lat:      lat,
			Lon:      lon,
			Observed: make(map[time.Time]float64),
		})
	}
	return inlets, nil
}

// EngineeredDischargeTable is the basin-wide mapping lakeName ->
// (timestamp -> Q), shared by reference and immutable after load: it is
// a property of the basin configuration, not copied per lake.
type EngineeredDischargeTable struct {
	byLake map[string]map[string]float64
}

// Lookup returns the engineered discharge for lakeName at the given
// timestamp string (YYYYMMDD_HHmm). A missing lookup yields Q = 0, a soft
// failure that is not logged.
func (e *EngineeredDischargeTable) Lookup(lakeName, timestamp string) float64 {
	if e == nil {
		return 0
	}
	byTime, ok := e.byLake[strings.ToLower(lakeName)]
	if !ok {
		return 0
	}
	return byTime[timestamp]
}

// Bound reports whether the table has any entries for lakeName.
func (e *EngineeredDischargeTable) Bound(lakeName string) bool {
	if e == nil {
		return false
	}
	_, ok := e.byLake[strings.ToLower(lakeName)]
	return ok
}

// LoadEngineeredDischargeCSV reads the engineered discharge table: header
// "time,lake1,lake2,...", rows "YYYYMMDD_HHmm,Q1,Q2,...". Missing or
// malformed numeric fields are treated as 0.
func LoadEngineeredDischargeCSV(r io.Reader) (*EngineeredDischargeTable, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ef5lake: reading engineered discharge header: %w", err)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("ef5lake: engineered discharge table has no lake columns")
	}
	lakeNames := header[1:]
	table := &EngineeredDischargeTable{byLake: make(map[string]map[string]float64, len(lakeNames))}
	for _, name := range lakeNames {
		table.byLake[strings.ToLower(strings.TrimSpace(name))] = make(map[string]float64)
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ef5lake: reading engineered discharge row: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		stamp := strings.TrimSpace(rec[0])
		for i, name := range lakeNames {
			col := i + 1
			q := 0.0
			if col < len(rec) {
				if v, ok := parseGaugeFloat(rec[col]); ok {
					q = v
				}
			}
			table.byLake[strings.ToLower(strings.TrimSpace(name))][stamp] = q
		}
	}
	return table, nil
}
