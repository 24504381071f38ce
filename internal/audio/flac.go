// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

func decodeFLAC(f *os.File) ([]float32, int, int, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels < 1 || bitDepth < 4 || bitDepth > 32 {
		return nil, 0, 0, fmt.Errorf("invalid FLAC stream info (channels: %d, bit depth: %d)", channels, bitDepth)
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	var data []float32
	if info.NSamples > 0 {
		data = make([]float32, 0, int(info.NSamples)*channels)
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("flac frame error: %w", err)
		}
		if len(frame.Subframes) < channels {
			return nil, 0, 0, fmt.Errorf("flac frame has %d subframes, want %d", len(frame.Subframes), channels)
		}

		// Subframes are planar; interleave them.
		blockSize := len(frame.Subframes[0].Samples)
		for i := range blockSize {
			for ch := range channels {
				data = append(data, float32(float64(frame.Subframes[ch].Samples[i])*scale))
			}
		}
	}

	return data, int(info.SampleRate), channels, nil
}
