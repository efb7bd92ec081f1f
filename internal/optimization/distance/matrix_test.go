package distance

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/testutil"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     optimization.Waypoint
		expected float64
	}{
		{
			name:     "same point",
			a:        optimization.Waypoint{ID: "a", Latitude: 37.5, Longitude: 127},
			b:        optimization.Waypoint{ID: "b", Latitude: 37.5, Longitude: 127},
			expected: 0,
		},
		{
			name:     "one degree of longitude at the equator",
			a:        optimization.Waypoint{ID: "a"},
			b:        optimization.Waypoint{ID: "b", Longitude: 1},
			expected: 69.094,
		},
		{
			name:     "kunsan to osan",
			a:        optimization.Waypoint{ID: "Kunsan", Latitude: 35.9038, Longitude: 126.6158},
			b:        optimization.Waypoint{ID: "Osan", Latitude: 37.0906, Longitude: 127.0296},
			expected: 85.161,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round3(Haversine(tt.a, tt.b))
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.Equal(t, got, Round3(Haversine(tt.b, tt.a)), "haversine should be symmetric")
		})
	}
}

func TestNewMatrixInvariants(t *testing.T) {
	waypoints := testutil.RandomWaypoints(40, 7)
	m, err := NewMatrix(context.Background(), waypoints, 3)
	require.NoError(t, err)
	require.Equal(t, len(waypoints), m.Len())

	for i := 0; i < m.Len(); i++ {
		assert.Zero(t, m.At(i, i), "diagonal must be zero")
		for j := 0; j < m.Len(); j++ {
			assert.GreaterOrEqual(t, m.At(i, j), 0.0)
			assert.Equal(t, m.At(i, j), m.At(j, i), "matrix must be symmetric")
			assert.Equal(t, Round3(m.At(i, j)), m.At(i, j), "distances are stored rounded")
		}
	}
}

func TestNewMatrixMatchesSerialComputation(t *testing.T) {
	waypoints := testutil.Airfields()
	m, err := NewMatrix(context.Background(), waypoints, 1)
	require.NoError(t, err)
	parallel, err := NewMatrix(context.Background(), waypoints, 8)
	require.NoError(t, err)

	for i := range waypoints {
		for j := range waypoints {
			want := 0.0
			if i != j {
				want = Round3(Haversine(waypoints[i], waypoints[j]))
			}
			assert.Equal(t, want, m.At(i, j))
			assert.Equal(t, want, parallel.At(i, j))
		}
	}
}

func TestNewMatrixValidation(t *testing.T) {
	tests := []struct {
		name      string
		waypoints []optimization.Waypoint
	}{
		{
			name: "duplicate id",
			waypoints: []optimization.Waypoint{
				{ID: "A"}, {ID: "B", Latitude: 1}, {ID: "A", Latitude: 2},
			},
		},
		{
			name:      "empty id",
			waypoints: []optimization.Waypoint{{ID: ""}},
		},
		{
			name:      "latitude out of range",
			waypoints: []optimization.Waypoint{{ID: "A", Latitude: 90.5}},
		},
		{
			name:      "longitude out of range",
			waypoints: []optimization.Waypoint{{ID: "A", Longitude: -180.01}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatrix(context.Background(), tt.waypoints, 2)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, optimization.ErrValidation), "expected a validation error, got %v", err)
		})
	}
}

func TestNewMatrixEdgeCases(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		m, err := NewMatrix(context.Background(), nil, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("identical coordinates give zero between different ids", func(t *testing.T) {
		m, err := NewMatrix(context.Background(), []optimization.Waypoint{
			{ID: "A", Latitude: 10, Longitude: 10},
			{ID: "B", Latitude: 10, Longitude: 10},
		}, 2)
		require.NoError(t, err)
		d, err := m.Distance("A", "B")
		require.NoError(t, err)
		assert.Zero(t, d)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewMatrix(ctx, testutil.RandomWaypoints(5, 1), 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMatrixLookups(t *testing.T) {
	m, err := NewMatrix(context.Background(), testutil.Square(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, m.IDs())
	assert.Equal(t, testutil.Square(), m.Waypoints())
	assert.Equal(t, "distance.Matrix{n=4}", m.String())
	i, ok := m.Index("C")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = m.Index("Z")
	assert.False(t, ok)

	d, err := m.Distance("A", "B")
	require.NoError(t, err)
	assert.InDelta(t, 69.094, d, 1e-9)

	_, err = m.Distance("A", "Z")
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestWriteCSV(t *testing.T) {
	m, err := NewMatrix(context.Background(), testutil.Square(), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"", "A", "B", "C", "D"}, records[0])
	assert.Equal(t, []string{"A", "0.000", "69.094", "97.711", "69.094"}, records[1])
	assert.Equal(t, "C", records[3][0])
	assert.Equal(t, "69.084", records[3][4])
}
