// SPDX-License-Identifier: MIT
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	applog "refmaster/internal/log"
)

// DefaultCommandArgs are used when Command.Args is empty.
var DefaultCommandArgs = []string{"{target}", "{reference}", "{result}", "{bits}"}

// Command runs an external program per request. Each argument may contain
// the placeholders {target}, {reference}, {result} and {bits}; the last two
// refer to the first requested result. Anything the program writes to stdout
// or stderr is forwarded line by line to Request.Log.
type Command struct {
	Program string
	Args    []string
}

func (c *Command) Master(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}

	args := c.expand(req)
	applog.Debugf("Engine: exec %s %s", c.Program, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.Program, args...)
	out := &lineWriter{emit: req.Log}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	out.flush()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("engine: %s: %w", c.Program, ctx.Err())
		}
		return fmt.Errorf("engine: %s: %w", c.Program, err)
	}
	return nil
}

func (c *Command) expand(req Request) []string {
	tmpl := c.Args
	if len(tmpl) == 0 {
		tmpl = DefaultCommandArgs
	}
	first := req.Results[0]
	r := strings.NewReplacer(
		"{target}", req.Target,
		"{reference}", req.Reference,
		"{result}", first.Path,
		"{bits}", strconv.Itoa(first.BitDepth),
	)

	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		args[i] = r.Replace(a)
	}
	return args
}

// lineWriter splits a byte stream into lines and passes each non-empty one
// to emit.
type lineWriter struct {
	mu      sync.Mutex
	pending bytes.Buffer
	emit    func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.Write(p)
	for {
		i := bytes.IndexByte(w.pending.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.pending.Next(i + 1))
		w.send(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Len() > 0 {
		w.send(w.pending.String())
		w.pending.Reset()
	}
}

func (w *lineWriter) send(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || w.emit == nil {
		return
	}
	w.emit(line)
}
