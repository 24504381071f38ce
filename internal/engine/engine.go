// SPDX-License-Identifier: MIT
/*
Package engine defines the contract for the mastering transform and ships
two implementations: Command, which shells out to an external program, and
Native, a built-in loudness match used when nothing external is configured.

An engine reads two files and writes one or more result files. Callers see
only the error and whatever lines the engine chose to log.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result names one output the engine must produce.
type Result struct {
	Path     string
	BitDepth int
}

// Request is a single mastering job.
type Request struct {
	Target    string
	Reference string
	Results   []Result

	// Log receives progress text from the engine. It may be nil.
	Log func(line string)
}

func (r Request) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log(fmt.Sprintf(format, args...))
	}
}

func (r Request) validate() error {
	if r.Target == "" || r.Reference == "" {
		return errors.New("engine: target and reference paths are required")
	}
	if len(r.Results) == 0 {
		return errors.New("engine: at least one result is required")
	}
	for _, res := range r.Results {
		if res.Path == "" {
			return errors.New("engine: result path is empty")
		}
	}
	return nil
}

// Engine transforms Request.Target toward Request.Reference.
type Engine interface {
	Master(ctx context.Context, req Request) error
}

// Func adapts an ordinary function to Engine.
type Func func(ctx context.Context, req Request) error

func (f Func) Master(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Kinds accepted by New.
const (
	KindNative  = "native"
	KindCommand = "command"
)

// New builds an engine by kind. Command engines need a program path.
func New(kind, program string, args []string) (Engine, error) {
	switch strings.ToLower(kind) {
	case "", KindNative:
		return NewNative(), nil
	case KindCommand:
		if program == "" {
			return nil, errors.New("engine: command engine needs a program")
		}
		return &Command{Program: program, Args: args}, nil
	default:
		return nil, fmt.Errorf("engine: unknown kind %q", kind)
	}
}
