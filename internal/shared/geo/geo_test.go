package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineSamePoint(t *testing.T) {
	if d := HaversineM(37.77, -122.41, 37.77, -122.41); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestHaversineM(t *testing.T) {
	// one thousandth of a degree of latitude is ~111 m
	d := HaversineM(0, 0, 0.001, 0)
	if d < 105 || d > 117 {
		t.Fatalf("unexpected distance: %v", d)
	}
}
