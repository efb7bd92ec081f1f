// Package testutil holds waypoint fixtures and assertions shared by the
// optimization package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/copyleftdev/steerpoint/internal/optimization"
)

// Square returns four waypoints on the corners of a one-degree square at
// the equator: A(0,0), B(0,1), C(1,1), D(1,0).
func Square() []optimization.Waypoint {
	return []optimization.Waypoint{
		{ID: "A", Latitude: 0, Longitude: 0},
		{ID: "B", Latitude: 0, Longitude: 1},
		{ID: "C", Latitude: 1, Longitude: 1},
		{ID: "D", Latitude: 1, Longitude: 0},
	}
}

// Airfields returns a handful of Korean peninsula airfields.
func Airfields() []optimization.Waypoint {
	return []optimization.Waypoint{
		{ID: "Kunsan", Latitude: 35.9038, Longitude: 126.6158},
		{ID: "Osan", Latitude: 37.0906, Longitude: 127.0296},
		{ID: "Suwon", Latitude: 37.2394, Longitude: 127.0071},
		{ID: "Seoul", Latitude: 37.4459, Longitude: 127.1140},
		{ID: "Chongju", Latitude: 36.7166, Longitude: 127.4991},
		{ID: "Taegu", Latitude: 35.8941, Longitude: 128.6586},
		{ID: "Kimhae", Latitude: 35.1795, Longitude: 128.9382},
		{ID: "Kwangju", Latitude: 35.1264, Longitude: 126.8089},
		{ID: "Pyongyang", Latitude: 39.2241, Longitude: 125.6700},
		{ID: "Wonsan", Latitude: 39.1668, Longitude: 127.4860},
	}
}

// RandomWaypoints generates n waypoints with ids W000.. inside a small box.
func RandomWaypoints(n int, seed int64) []optimization.Waypoint {
	rng := rand.New(rand.NewSource(seed))
	out := make([]optimization.Waypoint, n)
	for i := range out {
		out[i] = optimization.Waypoint{
			ID:        fmt.Sprintf("W%03d", i),
			Latitude:  30 + rng.Float64()*10,
			Longitude: 120 + rng.Float64()*10,
		}
	}
	return out
}

// AssertRoute checks that route contains every id in ids exactly once.
func AssertRoute(t *testing.T, route []string, ids []string) {
	t.Helper()

	if len(route) != len(ids) {
		t.Fatalf("route length mismatch: got %d, want %d", len(route), len(ids))
	}
	got := append([]string(nil), route...)
	want := append([]string(nil), ids...)
	sort.Strings(got)
	sort.Strings(want)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("route is not a permutation of the waypoint set: %v", route)
		}
	}
}

// AssertPermutation checks that order is a permutation of [0, n).
func AssertPermutation(t *testing.T, order []int, n int) {
	t.Helper()

	if !optimization.IsPermutation(order, n) {
		t.Fatalf("order %v is not a permutation of 0..%d", order, n-1)
	}
}
