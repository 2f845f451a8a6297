package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// californiaBBox is the coverage region for SWITRS-style extracts. A
// corridor box outside it means the configured dataset cannot describe
// the corridor and the source falls through to FARS.
var californiaBBox = geometry.BBox{MinLon: -125, MinLat: 32, MaxLon: -114, MaxLat: 43}

// crashRecord is one collision row normalized from any of the supported
// dataset formats.
type crashRecord struct {
	Lat, Lon     float64
	Year         int
	Severity     int
	FatalCount   int
	InjuredCount int
	Pedestrian   bool
	Bicycle      bool
}

// LocalCrashAdapter reads an authoritative state/local crash extract
// (SWITRS CSV, XLSX workbook, or point shapefile) from a file://,
// http(s)://, or ftp:// URL. Remote datasets are spooled to a temp
// file because the XLSX and shapefile readers need a seekable path.
type LocalCrashAdapter struct {
	http *fetcher.HTTPFetcher
	url  string
}

// NewLocalCrashAdapter creates an adapter for the dataset URL.
func NewLocalCrashAdapter(http *fetcher.HTTPFetcher, url string) *LocalCrashAdapter {
	return &LocalCrashAdapter{http: http, url: url}
}

// Fetch parses the dataset and summarizes the collisions inside the
// box. Errors propagate so the crash source can fall through to FARS.
func (a *LocalCrashAdapter) Fetch(ctx context.Context, box geometry.BBox) (*CrashSummary, error) {
	if !box.Within(californiaBBox) {
		return nil, eris.New("localcrash: corridor outside dataset coverage")
	}

	path, cleanup, err := a.localPath(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var records []crashRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = parseCrashCSV(path)
	case ".xlsx":
		records, err = parseCrashXLSX(path)
	case ".shp":
		records, err = parseCrashSHP(path)
	default:
		return nil, eris.Errorf("localcrash: unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	summary := summarizeLocalCrashes(records, box)
	zap.L().Info("crashes: local dataset summarized",
		zap.Int("records", len(records)),
		zap.Int("injuryCrashes", summary.TotalInjuryCrashes),
	)
	return summary, nil
}

// localPath resolves the dataset URL to a readable file path, spooling
// remote content to a temp file preserving the extension.
func (a *LocalCrashAdapter) localPath(ctx context.Context) (string, func(), error) {
	noop := func() {}

	if strings.HasPrefix(a.url, "file://") || !strings.Contains(a.url, "://") {
		return strings.TrimPrefix(a.url, "file://"), noop, nil
	}

	body, err := fetcher.OpenURL(ctx, a.http, a.url)
	if err != nil {
		return "", noop, eris.Wrap(err, "localcrash: open dataset url")
	}
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp("", "crash-dataset-*"+filepath.Ext(a.url))
	if err != nil {
		return "", noop, eris.Wrap(err, "localcrash: create temp file")
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", noop, eris.Wrap(err, "localcrash: spool dataset")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", noop, eris.Wrap(err, "localcrash: close temp file")
	}

	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil //nolint:errcheck
}

// SWITRS-style column names shared by the CSV and XLSX paths.
const (
	colLatitude  = "LATITUDE"
	colLongitude = "LONGITUDE"
	colYear      = "COLLISION_YEAR"
	colSeverity  = "COLLISION_SEVERITY"
	colFatality  = "COUNT_FATALITY"
	colInjured   = "COUNT_INJURED"
	colPed       = "PEDESTRIAN_ACCIDENT"
	colBike      = "BICYCLE_ACCIDENT"
)

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	return idx
}

func rowsToRecords(header []string, rows [][]string) ([]crashRecord, error) {
	idx := headerIndex(header)
	if _, ok := idx[colLatitude]; !ok {
		return nil, eris.New("localcrash: dataset missing LATITUDE column")
	}
	if _, ok := idx[colLongitude]; !ok {
		return nil, eris.New("localcrash: dataset missing LONGITUDE column")
	}

	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, name string) float64 {
		v, err := strconv.ParseFloat(cell(row, name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	records := make([]crashRecord, 0, len(rows))
	for _, row := range rows {
		lat := num(row, colLatitude)
		lon := num(row, colLongitude)
		if lat == 0 || lon == 0 {
			continue
		}
		records = append(records, crashRecord{
			Lat:          lat,
			Lon:          lon,
			Year:         int(num(row, colYear)),
			Severity:     int(num(row, colSeverity)),
			FatalCount:   int(num(row, colFatality)),
			InjuredCount: int(num(row, colInjured)),
			Pedestrian:   strings.EqualFold(cell(row, colPed), "Y"),
			Bicycle:      strings.EqualFold(cell(row, colBike), "Y"),
		})
	}
	return records, nil
}

func parseCrashCSV(path string) ([]crashRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "localcrash: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "localcrash: read csv")
	}
	if len(rows) < 2 {
		return nil, eris.New("localcrash: csv has no data rows")
	}
	return rowsToRecords(rows[0], rows[1:])
}

func parseCrashXLSX(path string) ([]crashRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "localcrash: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("localcrash: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil, eris.New("localcrash: xlsx has no data rows")
	}
	return rowsToRecords(rows[0], rows[1:])
}

// parseCrashSHP reads a point shapefile; coordinates come from the
// geometry and everything else from the attribute table.
func parseCrashSHP(path string) ([]crashRecord, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "localcrash: open shapefile")
	}
	defer reader.Close() //nolint:errcheck

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}

	attr := func(name string) string {
		i, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(attr(name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	var records []crashRecord
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			continue
		}
		if point.X == 0 || point.Y == 0 {
			continue
		}
		records = append(records, crashRecord{
			Lat:          point.Y,
			Lon:          point.X,
			Year:         int(num(colYear)),
			Severity:     int(num(colSeverity)),
			FatalCount:   int(num(colFatality)),
			InjuredCount: int(num(colInjured)),
			Pedestrian:   strings.EqualFold(attr(colPed), "Y"),
			Bicycle:      strings.EqualFold(attr(colBike), "Y"),
		})
	}
	return records, nil
}

// summarizeLocalCrashes filters records to the box and aggregates them
// using SWITRS severity coding: 1 fatal, 2 severe injury, 3 other
// visible injury.
func summarizeLocalCrashes(records []crashRecord, box geometry.BBox) *CrashSummary {
	var (
		fatalCrashes, fatalities      int
		pedFatalities, bikeFatalities int
		severeInjury, totalInjury     int
	)
	years := make(map[int]struct{})

	for _, rec := range records {
		if !box.Contains(rec.Lon, rec.Lat) {
			continue
		}
		if rec.Year != 0 {
			years[rec.Year] = struct{}{}
		}

		if rec.Severity == 1 || rec.FatalCount > 0 {
			fatalCrashes++
			fatalities += max(1, rec.FatalCount)
			if rec.Pedestrian {
				pedFatalities++
			}
			if rec.Bicycle {
				bikeFatalities++
			}
		}
		if rec.Severity == 2 {
			severeInjury++
		}
		if rec.InjuredCount > 0 || rec.Severity == 2 || rec.Severity == 3 {
			totalInjury++
		}
	}

	yearsQueried := make([]int, 0, len(years))
	for y := range years {
		yearsQueried = append(yearsQueried, y)
	}
	sort.Ints(yearsQueried)

	annualBasis := len(yearsQueried)
	if annualBasis == 0 {
		annualBasis = 1
	}
	area := box.AreaSqMiles()

	return &CrashSummary{
		TotalFatalCrashes:    fatalCrashes,
		TotalFatalities:      fatalities,
		PedestrianFatalities: pedFatalities,
		BicyclistFatalities:  bikeFatalities,
		SevereInjuryCrashes:  severeInjury,
		TotalInjuryCrashes:   totalInjury,
		YearsQueried:         yearsQueried,
		CrashesPerSquareMile: roundTenth(float64(totalInjury) / float64(annualBasis) / area),
		Source:               TagLocalCrash,
	}
}
