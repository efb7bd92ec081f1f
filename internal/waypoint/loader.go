// Package waypoint reads waypoint sets from delimited or spreadsheet files.
//
// The first row is a header. The name column may be titled Airfield, Name,
// Waypoint or ID; latitude Lat or Latitude; longitude Long, Lon, Lng or
// Longitude. Matching is case-insensitive and other columns are ignored.
package waypoint

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/copyleftdev/steerpoint/internal/errors"
	"github.com/copyleftdev/steerpoint/internal/optimization"
)

var (
	nameHeaders = []string{"airfield", "name", "waypoint", "id"}
	latHeaders  = []string{"lat", "latitude"}
	lonHeaders  = []string{"long", "lon", "lng", "longitude"}
)

// Load reads path, choosing the spreadsheet reader for .xlsx files and the
// CSV reader otherwise.
func Load(path string) ([]optimization.Waypoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open waypoint file").
			WithOperation("load").WithComponent("waypoint")
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(f)
	}
	return ReadCSV(f)
}

// ReadCSV parses comma-separated waypoint rows.
func ReadCSV(r io.Reader) ([]optimization.Waypoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, optimization.WrapError(err, optimization.KindValidation, "malformed csv").
			WithComponent("waypoint")
	}
	return parseRows(records)
}

// ReadXLSX parses waypoint rows from the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([]optimization.Waypoint, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, optimization.WrapError(err, optimization.KindValidation, "malformed workbook").
			WithComponent("waypoint")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "read workbook rows").
			WithOperation("read_xlsx").WithComponent("waypoint")
	}
	return parseRows(rows)
}

// parseRows converts a header row plus data rows into waypoints. Blank rows
// are skipped; row numbers in errors are 1-based and count the header.
func parseRows(rows [][]string) ([]optimization.Waypoint, error) {
	if len(rows) == 0 {
		return nil, optimization.NewValidationError("waypoint file is empty").WithComponent("waypoint")
	}

	header := rows[0]
	nameCol := findColumn(header, nameHeaders)
	latCol := findColumn(header, latHeaders)
	lonCol := findColumn(header, lonHeaders)
	if nameCol < 0 || latCol < 0 || lonCol < 0 {
		return nil, optimization.NewValidationError("header %v must name id, latitude and longitude columns", header).
			WithComponent("waypoint")
	}

	out := make([]optimization.Waypoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		name := cell(row, nameCol)
		if name == "" {
			return nil, optimization.NewValidationError("row %d: missing name", line).WithComponent("waypoint")
		}
		lat, err := strconv.ParseFloat(cell(row, latCol), 64)
		if err != nil {
			return nil, optimization.NewValidationError("row %d (%s): latitude %q is not a number", line, name, cell(row, latCol)).
				WithComponent("waypoint")
		}
		lon, err := strconv.ParseFloat(cell(row, lonCol), 64)
		if err != nil {
			return nil, optimization.NewValidationError("row %d (%s): longitude %q is not a number", line, name, cell(row, lonCol)).
				WithComponent("waypoint")
		}
		out = append(out, optimization.Waypoint{ID: name, Latitude: lat, Longitude: lon})
	}
	return out, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
