// SPDX-License-Identifier: MIT
/*
Package playback previews buffers through PortAudio.

The output callback copies straight from the buffer into PortAudio's slice
and hands the same block to an optional analysis.BlockProcessor, so a meter
can follow what is being heard. No allocation happens inside the callback.
*/
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"refmaster/internal/analysis"
	"refmaster/internal/audio"
)

// DefaultFramesPerBuffer is used when a caller passes zero.
const DefaultFramesPerBuffer = 1024

// Player streams one buffer to an output device.
type Player struct {
	buffer          *audio.Buffer
	framesPerBuffer int
	processor       analysis.BlockProcessor

	position atomic.Int64 // Next interleaved sample to play.

	device *portaudio.DeviceInfo
	stream *portaudio.Stream

	finished   chan struct{}
	finishOnce sync.Once
}

// NewPlayer prepares buf for device. processor may be nil.
func NewPlayer(buf *audio.Buffer, device *portaudio.DeviceInfo, framesPerBuffer int, processor analysis.BlockProcessor) (*Player, error) {
	if buf.Empty() {
		return nil, errors.New("playback: buffer is empty")
	}
	if device != nil && device.MaxOutputChannels < buf.Channels {
		return nil, fmt.Errorf("playback: %s supports %d output channels, buffer has %d",
			device.Name, device.MaxOutputChannels, buf.Channels)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &Player{
		buffer:          buf,
		framesPerBuffer: framesPerBuffer,
		processor:       processor,
		device:          device,
		finished:        make(chan struct{}),
	}, nil
}

// Start opens and starts the output stream.
func (p *Player) Start() error {
	if p.device == nil {
		return errors.New("playback: no output device")
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: p.buffer.Channels,
			Device:   p.device,
			Latency:  p.device.DefaultHighOutputLatency,
		},
		FramesPerBuffer: p.framesPerBuffer,
		SampleRate:      float64(p.buffer.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, p.processOutputStream)
	if err != nil {
		return err
	}
	p.stream = stream

	if err := p.stream.Start(); err != nil {
		p.stream.Close()
		p.stream = nil
		return err
	}
	return nil
}

// Stop halts and closes the stream. It is safe to call more than once.
func (p *Player) Stop() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return nil
}

// Wait blocks until the buffer has been played out or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	select {
	case <-p.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Progress returns the played fraction in [0, 1].
func (p *Player) Progress() float64 {
	return float64(p.position.Load()) / float64(len(p.buffer.Data))
}

// processOutputStream is the PortAudio callback.
func (p *Player) processOutputStream(out []float32) {
	n := p.fill(out)
	if p.processor != nil {
		p.processor.Process(out[:n])
	}
	if n < len(out) {
		p.finishOnce.Do(func() { close(p.finished) })
	}
}

// fill copies the next block into out, pads the tail with silence and
// returns how many samples came from the buffer.
func (p *Player) fill(out []float32) int {
	pos := int(p.position.Load())
	n := copy(out, p.buffer.Data[min(pos, len(p.buffer.Data)):])
	clear(out[n:])
	p.position.Store(int64(pos + n))
	return n
}

// Play initializes PortAudio, plays buf on deviceID to the end or until ctx
// is done, and shuts PortAudio down again.
func Play(ctx context.Context, buf *audio.Buffer, deviceID, framesPerBuffer int, processor analysis.BlockProcessor) (err error) {
	if err := Initialize(); err != nil {
		return err
	}
	defer func() {
		if terr := Terminate(); terr != nil && err == nil {
			err = terr
		}
	}()

	device, err := OutputDevice(deviceID)
	if err != nil {
		return err
	}
	p, err := NewPlayer(buf, device, framesPerBuffer, processor)
	if err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		return err
	}

	waitErr := p.Wait(ctx)
	if err := p.Stop(); err != nil {
		return err
	}
	if errors.Is(waitErr, context.Canceled) {
		return nil
	}
	return waitErr
}
