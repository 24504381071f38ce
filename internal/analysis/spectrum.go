// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"refmaster/internal/audio"
	applog "refmaster/internal/log"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

const (
	// DefaultWindowSize is the analysis frame length used for display spectra.
	DefaultWindowSize = 8192

	// magnitudeFloor keeps the dB conversion away from -Inf.
	magnitudeFloor = 1e-10
)

// ErrInvalidInput is returned when a spectrum cannot be computed at all.
var ErrInvalidInput = errors.New("analysis: invalid input")

// Series is an averaged magnitude spectrum. Both slices have the same
// length, windowSize/2 + 1, with frequencies ascending from DC.
type Series struct {
	Frequencies  []float64 `json:"frequencies"`
	MagnitudesDB []float64 `json:"magnitudes_db"`
}

// Len returns the number of bins.
func (s Series) Len() int {
	return len(s.Frequencies)
}

// Pre-allocated buffers for one STFT pass.
type fftWorkspace struct {
	input     []float64    // Windowed segment.
	fftOutput []complex128 // Complex FFT result.
	sum       []float64    // Accumulated magnitudes across segments.
	window    []float64    // Pre-calculated window coefficients.
}

// spectrumAnalyzer runs the overlapping short-time transform for a single
// window size and sample rate. It is not safe for concurrent use; each
// Spectrum call builds its own.
type spectrumAnalyzer struct {
	fftCalculator *fourier.FFT
	fftSize       int
	hopSize       int
	sampleRate    float64
	workspace     fftWorkspace
}

func newSpectrumAnalyzer(fftSize int, sampleRate float64, windowType WindowFunc) *spectrumAnalyzer {
	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	binCount := fftSize/2 + 1

	return &spectrumAnalyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		hopSize:       fftSize / 2,
		sampleRate:    sampleRate,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, binCount),
			sum:       make([]float64, binCount),
			window:    windowCoeffs,
		},
	}
}

// accumulate windows one full-length segment, transforms it and adds the
// bin magnitudes to the running sum.
func (a *spectrumAnalyzer) accumulate(segment []float64) {
	floats.MulTo(a.workspace.input, segment, a.workspace.window)
	a.fftCalculator.Coefficients(a.workspace.fftOutput, a.workspace.input)
	for i, c := range a.workspace.fftOutput {
		a.workspace.sum[i] += cmplx.Abs(c)
	}
}

// average slides the window across signal with 50% overlap and returns the
// mean magnitude per bin. A signal shorter than one window yields zeros.
func (a *spectrumAnalyzer) average(signal []float64) []float64 {
	clear(a.workspace.sum)

	segments := 0
	if len(signal) >= a.fftSize {
		segments = (len(signal)-a.fftSize)/a.hopSize + 1
	}
	for i := range segments {
		start := i * a.hopSize
		a.accumulate(signal[start : start+a.fftSize])
	}

	floats.Scale(1/float64(max(segments, 1)), a.workspace.sum)
	return a.workspace.sum
}

// frequencyForBin returns the center frequency (Hz) for a given bin index.
func (a *spectrumAnalyzer) frequencyForBin(binIndex int) float64 {
	return a.fftCalculator.Freq(binIndex) * a.sampleRate
}

func (a *spectrumAnalyzer) series(signal []float64) Series {
	mags := a.average(signal)
	s := Series{
		Frequencies:  make([]float64, len(mags)),
		MagnitudesDB: make([]float64, len(mags)),
	}
	for i, m := range mags {
		s.Frequencies[i] = a.frequencyForBin(i)
		s.MagnitudesDB[i] = 20 * math.Log10(math.Max(m, magnitudeFloor))
	}
	return s
}

// Spectrum returns the Hann-windowed, 50%-overlap averaged magnitude
// spectrum of the down-mixed buffer.
func Spectrum(buf *audio.Buffer, windowSize int) (Series, error) {
	return SpectrumWith(buf, windowSize, Hann)
}

// SpectrumWith is Spectrum with a caller-selected window function.
func SpectrumWith(buf *audio.Buffer, windowSize int, windowType WindowFunc) (Series, error) {
	if err := checkSpectrumInput(buf, windowSize); err != nil {
		return Series{}, err
	}
	a := newSpectrumAnalyzer(windowSize, float64(buf.SampleRate), windowType)
	return a.series(buf.Mono()), nil
}

// DisplaySpectrum is the visualization variant: the down-mix is scaled so
// its peak sits at unity before the transform. The buffer is not modified.
func DisplaySpectrum(buf *audio.Buffer, windowSize int) (Series, error) {
	if err := checkSpectrumInput(buf, windowSize); err != nil {
		return Series{}, err
	}
	mono := buf.Mono()
	peakNormalize(mono)

	a := newSpectrumAnalyzer(windowSize, float64(buf.SampleRate), Hann)
	return a.series(mono), nil
}

func checkSpectrumInput(buf *audio.Buffer, windowSize int) error {
	if buf == nil || buf.SampleRate <= 0 || buf.Channels < 1 {
		return fmt.Errorf("%w: buffer is missing or has no sample rate", ErrInvalidInput)
	}
	if windowSize < 2 {
		return fmt.Errorf("%w: window size must be at least 2, got %d", ErrInvalidInput, windowSize)
	}
	return nil
}

// peakNormalize divides signal by its largest absolute value in place. A
// silent signal is left as is.
func peakNormalize(signal []float64) {
	if len(signal) == 0 {
		return
	}
	peak := math.Max(math.Abs(floats.Max(signal)), math.Abs(floats.Min(signal)))
	if peak > 0 {
		floats.Scale(1/peak, signal)
	}
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale in place, so start from all ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
