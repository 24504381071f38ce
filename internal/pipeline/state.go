// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by Mastering. Stage failures wrap the underlying cause, so
// errors.Is works for both the stage sentinel and, for example, audio.ErrLoad.
var (
	ErrMissingInput = errors.New("target and reference must both be loaded")
	ErrStaging      = errors.New("staging failed")
	ErrTransform    = errors.New("mastering engine failed")
	ErrValidation   = errors.New("result validation failed")
	ErrBusy         = errors.New("processing already in progress")
	ErrNoResult     = errors.New("no processed result available")
)

// State is the lifecycle position of a Mastering session.
type State int32

const (
	StateIdle State = iota
	StateStaging
	StateTransforming
	StateValidating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStaging:
		return "staging"
	case StateTransforming:
		return "transforming"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Running reports whether a Process call is between staging and its outcome.
func (s State) Running() bool {
	return s == StateStaging || s == StateTransforming || s == StateValidating
}

// Which selects one of the session's buffers.
type Which int

const (
	Target Which = iota
	Reference
	Result
)

func (w Which) String() string {
	switch w {
	case Target:
		return "target"
	case Reference:
		return "reference"
	case Result:
		return "result"
	default:
		return fmt.Sprintf("Which(%d)", int(w))
	}
}

// ParseWhich accepts "target", "reference" or "result" in any case.
func ParseWhich(s string) (Which, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "target":
		return Target, nil
	case "reference":
		return Reference, nil
	case "result":
		return Result, nil
	default:
		return 0, fmt.Errorf("unknown buffer %q (want target, reference or result)", s)
	}
}
