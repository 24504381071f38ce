// SPDX-License-Identifier: MIT

// Package transport forwards session events and analysis results to
// consumers outside the process.
package transport

import (
	"errors"

	"refmaster/internal/analysis"
	"refmaster/internal/events"
)

// Transport defines a generic interface for sending events and analysis data.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types carried in Message.Type.
const (
	TypeProgress = "progress"
	TypeLog      = "log"
	TypeSpectrum = "spectrum"
	TypeReport   = "report"
	TypeWaveform = "waveform"
)

// Message is the JSON envelope every transport sends.
type Message struct {
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"` // target, reference or result
	Payload any    `json:"payload"`
}

// EventMessage wraps one channel event.
func EventMessage(e events.Event) Message {
	return Message{Type: string(e.Kind()), Payload: e}
}

// SpectrumMessage wraps a spectrum for source.
func SpectrumMessage(source string, s analysis.Series) Message {
	return Message{Type: TypeSpectrum, Source: source, Payload: s}
}

// ReportMessage wraps an analysis report for source.
func ReportMessage(source string, r analysis.Report) Message {
	return Message{Type: TypeReport, Source: source, Payload: r}
}

// WaveformMessage wraps a waveform overview for source.
func WaveformMessage(source string, w analysis.Waveform) Message {
	return Message{Type: TypeWaveform, Source: source, Payload: w}
}

// Publish sends every event in batch, in order, and returns the joined
// send errors.
func Publish(t Transport, batch []events.Event) error {
	var errs []error
	for _, e := range batch {
		if err := t.Send(EventMessage(e)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fanout sends to several transports in order.
type Fanout []Transport

func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
