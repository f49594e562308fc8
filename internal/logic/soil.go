package logic

import "math"

// SoilFilter smooths raw soil ADC counts with an exponential moving average
// and maps the smoothed value onto a calibrated 0-100% scale.
//
// The EMA primes on the first sample it sees; after that
// ema = alpha*raw + (1-alpha)*ema. The filter is the single owner of the
// EMA state, which survives across ticks.
type SoilFilter struct {
	alpha  float64
	dryRaw int
	wetRaw int

	ema    float64
	primed bool
}

// NewSoilFilter creates a filter with the given smoothing factor and
// calibration points. dryRaw maps to 0%, wetRaw to 100%. For a capacitive
// probe dryRaw > wetRaw; either ordering works.
func NewSoilFilter(alpha float64, dryRaw, wetRaw int) *SoilFilter {
	return &SoilFilter{alpha: alpha, dryRaw: dryRaw, wetRaw: wetRaw}
}

// Apply folds one averaged raw reading into the EMA and returns the sample.
// The raw value is clamped to [0, RawMax] before use.
func (f *SoilFilter) Apply(raw int) SoilSample {
	if raw < 0 {
		raw = 0
	}
	if raw > RawMax {
		raw = RawMax
	}

	if !f.primed {
		f.ema = float64(raw)
		f.primed = true
	} else {
		f.ema = f.alpha*float64(raw) + (1-f.alpha)*f.ema
	}

	return SoilSample{
		Raw:      raw,
		Smoothed: f.ema,
		Percent:  f.percent(f.ema),
	}
}

// percent linearly interpolates between the calibration points, clamped to
// [0, 100]. Equal calibration points define percent as 0 — a misconfiguration,
// not a runtime fault.
func (f *SoilFilter) percent(smoothed float64) int {
	if f.dryRaw == f.wetRaw {
		return 0
	}
	p := (smoothed - float64(f.dryRaw)) / (float64(f.wetRaw) - float64(f.dryRaw)) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(math.Round(p))
}
