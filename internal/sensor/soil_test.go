package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
)

func newSoilReader(adc hw.ADC, samples int) *SoilReader {
	// alpha=1 so tests see the averaged raw directly
	r := NewSoilReader(adc, logic.NewSoilFilter(1.0, 3200, 1200), samples, 2*time.Millisecond)
	r.sleep = func(time.Duration) {}
	return r
}

func TestSoilReaderAverages(t *testing.T) {
	adc := hw.NewFakeADC([]int{2000, 2100, 2200, 2300})
	r := newSoilReader(adc, 4)

	s, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.Raw != 2150 {
		t.Errorf("Raw: got %d, want 2150", s.Raw)
	}
}

func TestSoilReaderRoundsAverage(t *testing.T) {
	adc := hw.NewFakeADC([]int{2000, 2001})
	r := newSoilReader(adc, 2)

	s, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// 2000.5 rounds to 2001
	if s.Raw != 2001 {
		t.Errorf("Raw: got %d, want 2001", s.Raw)
	}
}

func TestSoilReaderSleepsBetweenSamples(t *testing.T) {
	adc := hw.NewFakeADC([]int{2000})
	r := NewSoilReader(adc, logic.NewSoilFilter(0.3, 3200, 1200), 8, 2*time.Millisecond)

	var slept int
	r.sleep = func(d time.Duration) {
		if d != 2*time.Millisecond {
			t.Errorf("sleep: got %v, want 2ms", d)
		}
		slept++
	}

	if _, err := r.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	// N samples, N-1 gaps
	if slept != 7 {
		t.Errorf("sleeps: got %d, want 7", slept)
	}
}

func TestSoilReaderADCErrorLeavesFilterUntouched(t *testing.T) {
	adc := hw.NewFakeADC([]int{2000})
	filter := logic.NewSoilFilter(0.5, 3200, 1200)
	r := NewSoilReader(adc, filter, 1, 0)
	r.sleep = func(time.Duration) {}

	first, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	adc.ReadError = errors.New("bus fault")
	if _, err := r.Read(); err == nil {
		t.Fatal("expected error from failed acquisition")
	}

	// A successful read resumes from the same EMA state.
	adc.ReadError = nil
	second, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if second.Smoothed != first.Smoothed {
		t.Errorf("EMA advanced across a failed read: %v -> %v", first.Smoothed, second.Smoothed)
	}
}

func TestSoilReaderBlockingTime(t *testing.T) {
	adc := hw.NewFakeADC([]int{0})
	r := NewSoilReader(adc, logic.NewSoilFilter(0.3, 3200, 1200), 8, 2*time.Millisecond)
	if got := r.BlockingTime(); got != 14*time.Millisecond {
		t.Errorf("BlockingTime: got %v, want 14ms", got)
	}
}
