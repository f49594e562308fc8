// Package sensor implements the blocking acquisition drivers that sit
// between the hardware abstraction and the pure control logic. Reads are
// bounded by fixed per-sample delays and pulse timeouts; together they set
// the lower bound on the control tick period.
package sensor

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
)

// SoilReader averages several raw ADC samples per tick and folds the
// result into the soil filter. The small delay between samples reduces
// correlated converter noise.
type SoilReader struct {
	adc     hw.ADC
	filter  *logic.SoilFilter
	samples int
	delay   time.Duration
	sleep   func(time.Duration)
}

// NewSoilReader creates a reader taking `samples` raw reads per call with
// `delay` between them.
func NewSoilReader(adc hw.ADC, filter *logic.SoilFilter, samples int, delay time.Duration) *SoilReader {
	if samples < 1 {
		samples = 1
	}
	return &SoilReader{
		adc:     adc,
		filter:  filter,
		samples: samples,
		delay:   delay,
		sleep:   time.Sleep,
	}
}

// Read performs one averaged acquisition and returns the filtered sample.
// An ADC error aborts the acquisition; the filter state is untouched and
// the caller carries the previous sample into the next tick.
func (r *SoilReader) Read() (logic.SoilSample, error) {
	sum := 0
	for i := 0; i < r.samples; i++ {
		v, err := r.adc.ReadRaw()
		if err != nil {
			return logic.SoilSample{}, fmt.Errorf("soil adc: %w", err)
		}
		sum += v
		if i < r.samples-1 {
			r.sleep(r.delay)
		}
	}
	avg := int(math.Round(float64(sum) / float64(r.samples)))
	return r.filter.Apply(avg), nil
}

// BlockingTime returns the worst-case time one Read spends sleeping.
func (r *SoilReader) BlockingTime() time.Duration {
	return time.Duration(r.samples-1) * r.delay
}
