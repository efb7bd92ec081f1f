// Package distance builds the all-pairs great-circle distance matrix that
// every path strategy reads from.
package distance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/steerpoint/internal/optimization"
)

// EarthRadiusMiles is the mean Earth radius used by Haversine.
const EarthRadiusMiles = 3958.8

// Matrix is a symmetric, zero-diagonal table of distances in miles between
// waypoints, rounded to three decimals. It is immutable after NewMatrix
// returns and safe for concurrent readers.
type Matrix struct {
	waypoints []optimization.Waypoint
	index     map[string]int
	dist      *mat.SymDense
}

// Haversine returns the great-circle distance in miles between a and b.
func Haversine(a, b optimization.Waypoint) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	deltaPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMiles * c
}

// Round3 rounds v to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Validate checks ids are present and unique and coordinates are in range.
func Validate(waypoints []optimization.Waypoint) error {
	seen := make(map[string]int, len(waypoints))
	for i, w := range waypoints {
		if w.ID == "" {
			return optimization.NewValidationError("waypoint %d has an empty id", i).
				WithComponent("distance").WithOperation("validate")
		}
		if prev, dup := seen[w.ID]; dup {
			return optimization.NewValidationError("duplicate waypoint id %q at positions %d and %d", w.ID, prev, i).
				WithComponent("distance").WithOperation("validate")
		}
		seen[w.ID] = i
		if math.IsNaN(w.Latitude) || w.Latitude < -90 || w.Latitude > 90 {
			return optimization.NewValidationError("waypoint %q latitude %v out of range [-90, 90]", w.ID, w.Latitude).
				WithComponent("distance").WithOperation("validate")
		}
		if math.IsNaN(w.Longitude) || w.Longitude < -180 || w.Longitude > 180 {
			return optimization.NewValidationError("waypoint %q longitude %v out of range [-180, 180]", w.ID, w.Longitude).
				WithComponent("distance").WithOperation("validate")
		}
	}
	return nil
}

// NewMatrix validates waypoints and computes every pairwise distance. Rows
// are spread over at most workers goroutines; workers <= 0 uses GOMAXPROCS.
func NewMatrix(ctx context.Context, waypoints []optimization.Waypoint, workers int) (*Matrix, error) {
	if err := Validate(waypoints); err != nil {
		return nil, err
	}

	n := len(waypoints)
	m := &Matrix{
		waypoints: append([]optimization.Waypoint(nil), waypoints...),
		index:     make(map[string]int, n),
	}
	for i, w := range m.waypoints {
		m.index[w.ID] = i
	}
	if n == 0 {
		return m, nil
	}
	m.dist = mat.NewSymDense(n, nil)

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// Each goroutine owns row i of the upper triangle, so writes never overlap.
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := i + 1; j < n; j++ {
				m.dist.SetSym(i, j, Round3(Haversine(m.waypoints[i], m.waypoints[j])))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of waypoints.
func (m *Matrix) Len() int { return len(m.waypoints) }

// ID returns the waypoint id at index i.
func (m *Matrix) ID(i int) string { return m.waypoints[i].ID }

// IDs returns the waypoint ids in input order.
func (m *Matrix) IDs() []string {
	ids := make([]string, len(m.waypoints))
	for i, w := range m.waypoints {
		ids[i] = w.ID
	}
	return ids
}

// Waypoints returns a copy of the waypoints the matrix was built from.
func (m *Matrix) Waypoints() []optimization.Waypoint {
	return append([]optimization.Waypoint(nil), m.waypoints...)
}

// Index returns the matrix index for id.
func (m *Matrix) Index(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// At returns the distance between waypoints i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.dist.At(i, j)
}

// Distance looks up the distance between two waypoint ids.
func (m *Matrix) Distance(a, b string) (float64, error) {
	i, ok := m.index[a]
	if !ok {
		return 0, optimization.NewValidationError("unknown waypoint %q", a).WithComponent("distance")
	}
	j, ok := m.index[b]
	if !ok {
		return 0, optimization.NewValidationError("unknown waypoint %q", b).WithComponent("distance")
	}
	return m.At(i, j), nil
}

// WriteCSV serializes the matrix as an id x id grid. The first header cell
// is empty; each following row starts with the row's id.
func (m *Matrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.IDs()...)); err != nil {
		return err
	}
	for _, row := range m.Rows() {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Rows formats each matrix row as its id followed by distances with three
// decimals.
func (m *Matrix) Rows() [][]string {
	n := m.Len()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, 0, n+1)
		row = append(row, m.ID(i))
		for j := 0; j < n; j++ {
			row = append(row, strconv.FormatFloat(m.At(i, j), 'f', 3, 64))
		}
		rows[i] = row
	}
	return rows
}

// String implements fmt.Stringer for debugging small matrices.
func (m *Matrix) String() string {
	return fmt.Sprintf("distance.Matrix{n=%d}", m.Len())
}
