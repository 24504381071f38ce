// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"refmaster/internal/analysis"
	"refmaster/internal/audio"
)

// DefaultCeilingDB is the highest peak Native lets through.
const DefaultCeilingDB = -0.1

// Native matches the target's RMS level to the reference and scales back if
// that would push the peak over CeilingDB. It does not touch the spectrum.
type Native struct {
	CeilingDB float64
}

func NewNative() *Native {
	return &Native{CeilingDB: DefaultCeilingDB}
}

func (n *Native) Master(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}

	target, err := audio.Load(req.Target)
	if err != nil {
		return err
	}
	reference, err := audio.Load(req.Reference)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tr, rr := analysis.Analyze(target), analysis.Analyze(reference)
	req.logf("Target: RMS %.1f dB, peak %.1f dB", tr.RMSDB, tr.PeakDB)
	req.logf("Reference: RMS %.1f dB, peak %.1f dB", rr.RMSDB, rr.PeakDB)

	gain := n.gain(tr, rr)
	req.logf("Applying %.2f dB of gain", 20*math.Log10(gain))

	out := scale(target, gain)
	for _, res := range req.Results {
		format, err := audio.PCMFormat(res.BitDepth)
		if err != nil {
			return fmt.Errorf("engine: %s: %w", res.Path, err)
		}
		if err := audio.SaveAs(out, res.Path, format); err != nil {
			return err
		}
		req.logf("Wrote %s (%s)", res.Path, format)
	}
	return nil
}

// gain returns the linear factor for the target. Silent inputs get unity.
func (n *Native) gain(target, reference analysis.Report) float64 {
	if target.RMSDB <= analysis.FloorDB || reference.RMSDB <= analysis.FloorDB {
		return 1
	}
	gainDB := reference.RMSDB - target.RMSDB
	if headroom := n.CeilingDB - target.PeakDB; gainDB > headroom {
		gainDB = headroom
	}
	return math.Pow(10, gainDB/20)
}

func scale(buf *audio.Buffer, gain float64) *audio.Buffer {
	samples := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float64(s)
	}
	floats.Scale(gain, samples)

	out := &audio.Buffer{
		Data:       make([]float32, len(samples)),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	for i, s := range samples {
		out.Data[i] = float32(s)
	}
	return out
}
