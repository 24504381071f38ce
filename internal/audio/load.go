// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	applog "refmaster/internal/log"
)

// decodeFunc decodes an opened file into interleaved float32 samples.
type decodeFunc func(f *os.File) (data []float32, sampleRate, channels int, err error)

// decoders maps lower-case file extensions to their decoder.
var decoders = map[string]decodeFunc{
	".wav":  decodeWAV,
	".wave": decodeWAV,
	".mp3":  decodeMP3,
	".flac": decodeFLAC,
}

// SupportedExtensions lists the file extensions Load accepts.
func SupportedExtensions() []string {
	return []string{".wav", ".wave", ".mp3", ".flac"}
}

// Load reads the file at path, converts it to float32 and peak-normalizes it
// down to unity if any sample exceeds full scale. All failures wrap ErrLoad.
func Load(path string) (*Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported format %q", ErrLoad, path, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	data, sampleRate, channels, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: decoded signal is empty", ErrLoad, path)
	}

	buf, err := NewBuffer(data, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	normalize(buf.Data)

	applog.Debugf("Audio: Loaded %s (%d Hz, %d ch, %d frames)",
		filepath.Base(path), buf.SampleRate, buf.Channels, buf.Frames())
	return buf, nil
}
