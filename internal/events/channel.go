// SPDX-License-Identifier: MIT
/*
Package events carries progress and log notifications from a running
pipeline to whoever is watching it.

The producer never blocks: Channel is an unbounded queue guarded by a mutex.
The consumer polls on its own cadence and drains everything queued so far.
Events come out in the order they went in, each exactly once.
*/
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "refmaster/internal/log"
)

// Sink accepts pipeline notifications. Implementations must be safe to call
// from a goroutine other than the consumer's and must not block.
type Sink interface {
	Progress(percent int)
	Log(level applog.LogLevel, message string)
}

// Kind tags an Event for consumers that switch on it after JSON decoding.
type Kind string

const (
	KindProgress Kind = "progress"
	KindLog      Kind = "log"
)

// Event is one queued notification.
type Event interface {
	Kind() Kind
}

// ProgressEvent reports overall completion in percent (0-100).
type ProgressEvent struct {
	Percent int `json:"percent"`
}

func (ProgressEvent) Kind() Kind { return KindProgress }

// LogEvent is a human-readable status line.
type LogEvent struct {
	Level   applog.LogLevel `json:"level"`
	Message string          `json:"message"`
	Time    time.Time       `json:"time"`
}

func (LogEvent) Kind() Kind { return KindLog }

func (e LogEvent) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// Channel is the queue between pipeline and presentation. The zero value is
// ready to use.
type Channel struct {
	mu      sync.Mutex
	pending []Event
	now     func() time.Time
}

var _ Sink = (*Channel)(nil)

// NewChannel returns an empty Channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Push appends e to the queue.
func (c *Channel) Push(e Event) {
	c.mu.Lock()
	c.pending = append(c.pending, e)
	c.mu.Unlock()
}

func (c *Channel) Progress(percent int) {
	c.Push(ProgressEvent{Percent: min(max(percent, 0), 100)})
}

func (c *Channel) Log(level applog.LogLevel, message string) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	c.Push(LogEvent{Level: level, Message: message, Time: now()})
}

// Logf formats and queues a log event.
func (c *Channel) Logf(level applog.LogLevel, format string, args ...any) {
	c.Log(level, fmt.Sprintf(format, args...))
}

// Drain removes and returns every queued event, oldest first. It returns
// nil when nothing is pending.
func (c *Channel) Drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	out := c.pending
	c.pending = nil
	return out
}

// Len reports how many events are waiting.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Poll drains ch every interval and hands non-empty batches to fn until ctx
// is done. A final drain runs after cancellation so nothing queued before it
// is lost.
func Poll(ctx context.Context, ch *Channel, every time.Duration, fn func([]Event)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if batch := ch.Drain(); batch != nil {
				fn(batch)
			}
			return
		case <-ticker.C:
			if batch := ch.Drain(); batch != nil {
				fn(batch)
			}
		}
	}
}

type discard struct{}

func (discard) Progress(int) {}
func (discard) Log(applog.LogLevel, string) {}

// Discard drops every notification.
var Discard Sink = discard{}

type logger string

func (logger) Progress(int) {}

func (l logger) Log(level applog.LogLevel, message string) {
	applog.Logf(level, "%s%s", string(l), message)
}

// Logger returns a Sink that writes log notifications to the process log
// behind prefix and drops progress.
func Logger(prefix string) Sink {
	return logger(prefix)
}

// Tee returns a Sink that forwards to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	var live multi
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return live
}

type multi []Sink

func (m multi) Progress(percent int) {
	for _, s := range m {
		s.Progress(percent)
	}
}

func (m multi) Log(level applog.LogLevel, message string) {
	for _, s := range m {
		s.Log(level, message)
	}
}
