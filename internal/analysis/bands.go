// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
}

// BandLevel is the RMS magnitude of the spectrum bins inside one band.
type BandLevel struct {
	FrequencyBand
	LevelDB float64 `json:"level_db"`
	Bins    int     `json:"bins"`
}

// DefaultBands covers the audible range in six broad regions. The treble
// band is open-ended and stops at whatever the spectrum's top bin is.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandLevels summarizes s into DefaultBands.
func BandLevels(s Series) []BandLevel {
	return BandLevelsFor(s, DefaultBands)
}

// BandLevelsFor sums bin energy (magnitude squared) per band and reports the
// root of the mean in dB. A bin belongs to the first band with
// LowHz <= f < HighHz. Bands that catch no bins report the spectrum floor.
func BandLevelsFor(s Series, bands []FrequencyBand) []BandLevel {
	levels := make([]BandLevel, len(bands))
	energy := make([]float64, len(bands))
	for i, b := range bands {
		levels[i].FrequencyBand = b
	}

	for i, freq := range s.Frequencies {
		if i >= len(s.MagnitudesDB) {
			break
		}
		mag := math.Pow(10, s.MagnitudesDB[i]/20)
		for j, b := range bands {
			if freq >= b.LowHz && freq < b.HighHz {
				energy[j] += mag * mag
				levels[j].Bins++
				break
			}
		}
	}

	for j := range levels {
		avg := 0.0
		if levels[j].Bins > 0 {
			avg = energy[j] / float64(levels[j].Bins)
		}
		levels[j].LevelDB = 20 * math.Log10(math.Max(math.Sqrt(avg), magnitudeFloor))
	}
	return levels
}
