// Package report formats optimization results for people and exports the
// distance matrix for inspection.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/copyleftdev/steerpoint/internal/errors"
	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/distance"
)

const matrixSheet = "Distances"

// Write prints the route as numbered steerpoints with the distance from the
// previous one. The first steerpoint is 0 miles from itself.
func Write(w io.Writer, res *optimization.Result) error {
	if _, err := fmt.Fprintf(w, "Shortest %s route is %4.1f miles\n", res.Strategy, res.Cost); err != nil {
		return err
	}
	for i, id := range res.Route {
		miles := 0.0
		if i > 0 {
			miles = res.Legs[i-1].Distance
		}
		if _, err := fmt.Fprintf(w, "\tSteerpoint %d is %s which is %.3f miles from previous steerpoint\n", i+1, id, miles); err != nil {
			return err
		}
	}
	return nil
}

// WriteMatrixFile exports m to path as XLSX when the extension is .xlsx and
// as CSV otherwise.
func WriteMatrixFile(path string, m *distance.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create matrix export").WithComponent("report")
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = WriteMatrixXLSX(f, m)
	} else {
		err = m.WriteCSV(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "write matrix export %s", path).WithComponent("report")
	}
	return nil
}

// WriteMatrixXLSX writes m as a single-sheet workbook with the same layout
// as Matrix.WriteCSV.
func WriteMatrixXLSX(w io.Writer, m *distance.Matrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		return err
	}

	header := make([]interface{}, 0, m.Len()+1)
	header = append(header, "")
	for _, id := range m.IDs() {
		header = append(header, id)
	}
	if err := f.SetSheetRow(matrixSheet, "A1", &header); err != nil {
		return err
	}

	for i := 0; i < m.Len(); i++ {
		row := make([]interface{}, 0, m.Len()+1)
		row = append(row, m.ID(i))
		for j := 0; j < m.Len(); j++ {
			row = append(row, m.At(i, j))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(matrixSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
