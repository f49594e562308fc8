package logic

import (
	"math"
	"testing"
)

func TestSoilFilterPrimesOnFirstSample(t *testing.T) {
	f := NewSoilFilter(0.3, 3200, 1200)

	s := f.Apply(2000)
	if s.Smoothed != 2000 {
		t.Errorf("first sample should prime the EMA: got %v, want 2000", s.Smoothed)
	}
	if s.Raw != 2000 {
		t.Errorf("Raw: got %d, want 2000", s.Raw)
	}
}

func TestSoilFilterEMA(t *testing.T) {
	f := NewSoilFilter(0.5, 3200, 1200)

	f.Apply(2000)
	s := f.Apply(3000)
	if s.Smoothed != 2500 {
		t.Errorf("EMA: got %v, want 2500", s.Smoothed)
	}
	s = f.Apply(3000)
	if s.Smoothed != 2750 {
		t.Errorf("EMA: got %v, want 2750", s.Smoothed)
	}
}

func TestSoilFilterClampsRaw(t *testing.T) {
	f := NewSoilFilter(1.0, 3200, 1200)

	s := f.Apply(-50)
	if s.Raw != 0 {
		t.Errorf("negative raw should clamp to 0, got %d", s.Raw)
	}
	s = f.Apply(5000)
	if s.Raw != RawMax {
		t.Errorf("raw above RawMax should clamp to %d, got %d", RawMax, s.Raw)
	}
}

func TestSoilFilterPercentCalibration(t *testing.T) {
	// Capacitive probe: dry reads high, wet reads low.
	tests := []struct {
		name string
		raw  int
		want int
	}{
		{"at dry calibration", 3200, 0},
		{"at wet calibration", 1200, 100},
		{"midpoint", 2200, 50},
		{"beyond dry clamps to 0", 4000, 0},
		{"beyond wet clamps to 100", 500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// alpha=1 so the EMA tracks raw exactly
			f := NewSoilFilter(1.0, 3200, 1200)
			s := f.Apply(tt.raw)
			if s.Percent != tt.want {
				t.Errorf("Apply(%d).Percent: got %d, want %d", tt.raw, s.Percent, tt.want)
			}
		})
	}
}

func TestSoilFilterPercentRounds(t *testing.T) {
	f := NewSoilFilter(1.0, 3000, 0)
	s := f.Apply(2000)
	// (2000-3000)/(0-3000)*100 = 33.33 → 33
	if s.Percent != 33 {
		t.Errorf("Percent: got %d, want 33", s.Percent)
	}
}

func TestSoilFilterEqualCalibrationNeverDivides(t *testing.T) {
	f := NewSoilFilter(0.3, 2000, 2000)

	for _, raw := range []int{0, 1000, 2000, 3000, RawMax} {
		s := f.Apply(raw)
		if s.Percent != 0 {
			t.Errorf("Apply(%d).Percent with equal calibration: got %d, want 0", raw, s.Percent)
		}
		if math.IsNaN(s.Smoothed) || math.IsInf(s.Smoothed, 0) {
			t.Errorf("Apply(%d).Smoothed: got %v", raw, s.Smoothed)
		}
	}
}
