// SPDX-License-Identifier: MIT
package events

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	applog "refmaster/internal/log"
)

func TestChannelPreservesOrder(t *testing.T) {
	ch := NewChannel()
	ch.Progress(10)
	ch.Log(applog.LevelInfo, "staging")
	ch.Progress(30)
	ch.Logf(applog.LevelWarn, "retry %d", 2)

	got := ch.Drain()
	if len(got) != 4 {
		t.Fatalf("drained %d events, want 4", len(got))
	}
	if p, ok := got[0].(ProgressEvent); !ok || p.Percent != 10 {
		t.Errorf("event 0 = %#v, want progress 10", got[0])
	}
	if l, ok := got[1].(LogEvent); !ok || l.Message != "staging" || l.Level != applog.LevelInfo {
		t.Errorf("event 1 = %#v, want INFO staging", got[1])
	}
	if p, ok := got[2].(ProgressEvent); !ok || p.Percent != 30 {
		t.Errorf("event 2 = %#v, want progress 30", got[2])
	}
	if l, ok := got[3].(LogEvent); !ok || l.Message != "retry 2" {
		t.Errorf("event 3 = %#v, want formatted message", got[3])
	}

	if again := ch.Drain(); again != nil {
		t.Errorf("second drain returned %d events, want none", len(again))
	}
}

func TestChannelClampsProgress(t *testing.T) {
	ch := NewChannel()
	ch.Progress(-5)
	ch.Progress(250)

	got := ch.Drain()
	if got[0].(ProgressEvent).Percent != 0 || got[1].(ProgressEvent).Percent != 100 {
		t.Errorf("clamped values = %v", got)
	}
}

func TestChannelConcurrentProducer(t *testing.T) {
	const n = 5000
	ch := NewChannel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			ch.Progress(i % 101)
		}
	}()

	var seen []Event
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		seen = append(seen, ch.Drain()...)
		select {
		case <-done:
			seen = append(seen, ch.Drain()...)
			if len(seen) != n {
				t.Fatalf("received %d events, want %d", len(seen), n)
			}
			for i, e := range seen {
				if e.(ProgressEvent).Percent != i%101 {
					t.Fatalf("event %d out of order: %v", i, e)
				}
			}
			return
		default:
		}
	}
}

func TestPollDeliversEverything(t *testing.T) {
	ch := NewChannel()
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu  sync.Mutex
		got []Event
	)
	finished := make(chan struct{})
	go func() {
		Poll(ctx, ch, time.Millisecond, func(batch []Event) {
			mu.Lock()
			got = append(got, batch...)
			mu.Unlock()
		})
		close(finished)
	}()

	for i := range 50 {
		ch.Progress(i)
	}
	cancel()
	<-finished

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("poll delivered %d events, want 50", len(got))
	}
	for i, e := range got {
		if e.(ProgressEvent).Percent != i {
			t.Fatalf("event %d = %v", i, e)
		}
	}
}

func TestLogEventTimestamp(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	ch := &Channel{now: func() time.Time { return fixed }}
	ch.Log(applog.LevelError, "engine failed")

	e := ch.Drain()[0].(LogEvent)
	if !e.Time.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", e.Time, fixed)
	}
	if want := "12:30:05 [ERROR] engine failed"; e.String() != want {
		t.Errorf("String() = %q, want %q", e.String(), want)
	}
}

func TestTee(t *testing.T) {
	a, b := NewChannel(), NewChannel()
	s := Tee(a, nil, b)
	s.Progress(42)
	s.Log(applog.LevelInfo, "hello")

	if a.Len() != 2 || b.Len() != 2 {
		t.Errorf("tee delivered %d/%d events, want 2/2", a.Len(), b.Len())
	}
	Discard.Progress(1)
}

func TestLoggerWritesProcessLog(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	t.Cleanup(func() { applog.SetOutput(os.Stderr) })

	ch := NewChannel()
	s := Tee(ch, Logger("Pipeline: "))
	s.Progress(10)
	s.Log(applog.LevelWarn, "could not remove staged file")

	if got := buf.String(); !strings.Contains(got, "[WARN] Pipeline: could not remove staged file") {
		t.Errorf("process log = %q, want prefixed WARN line", got)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("process log = %q, want only the log notification", buf.String())
	}
	if ch.Len() != 2 {
		t.Errorf("channel holds %d events, want progress and log", ch.Len())
	}
}
