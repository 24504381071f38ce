// SPDX-License-Identifier: MIT
package tone

import (
	"math"
	"testing"
)

func TestSine(t *testing.T) {
	buf := Sine(0.5, 8000, 1000, 0.5, 2)

	if buf.Frames() != 4000 || buf.Channels != 2 {
		t.Fatalf("got %d frames x %d ch, want 4000 x 2", buf.Frames(), buf.Channels)
	}
	if math.Abs(buf.PeakAbs()-0.5) > 1e-6 {
		t.Errorf("peak = %f, want 0.5", buf.PeakAbs())
	}
	for i := 0; i < len(buf.Data); i += 2 {
		if buf.Data[i] != buf.Data[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
}

func TestComplexPeak(t *testing.T) {
	buf := Complex(0.1, 44100, 1, 1)
	if peak := buf.PeakAbs(); peak > 1.0 || peak < 0.5 {
		t.Errorf("peak = %f, want within (0.5, 1.0]", peak)
	}
}

func TestPeakBin(t *testing.T) {
	values := []float64{0, 3, 1, 9, 2}
	tests := []struct {
		desc       string
		start, end int
		want       int
	}{
		{"Whole range", 0, 4, 3},
		{"Clamped bounds", -5, 99, 3},
		{"Sub range", 0, 2, 1},
		{"Single bin", 4, 4, 4},
	}
	for _, tt := range tests {
		if got := PeakBin(values, tt.start, tt.end); got != tt.want {
			t.Errorf("%s: PeakBin = %d, want %d", tt.desc, got, tt.want)
		}
	}
	if PeakBin(nil, 0, 10) != 0 {
		t.Error("empty input should return 0")
	}
}
