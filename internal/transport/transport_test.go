// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"refmaster/internal/analysis"
	"refmaster/internal/events"
	applog "refmaster/internal/log"
)

type recorder struct {
	sent   []any
	err    error
	closed bool
}

func (r *recorder) Send(data any) error {
	r.sent = append(r.sent, data)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return r.err
}

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(wst.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport()
	t.Cleanup(func() { wst.Close() })
	conn := dial(t, wst)

	ch := events.NewChannel()
	ch.Progress(30)
	ch.Log(applog.LevelInfo, "Running mastering engine")
	if err := Publish(wst, ch.Drain()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var got []map[string]any
	for range 2 {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		got = append(got, msg)
	}

	if got[0]["type"] != TypeProgress || got[0]["payload"].(map[string]any)["percent"] != 30.0 {
		t.Errorf("first message = %v, want progress 30", got[0])
	}
	payload := got[1]["payload"].(map[string]any)
	if got[1]["type"] != TypeLog || payload["level"] != "INFO" || payload["message"] != "Running mastering engine" {
		t.Errorf("second message = %v, want INFO log", got[1])
	}
}

func TestWebSocketSpectrumMessage(t *testing.T) {
	wst := NewWebSocketTransport()
	t.Cleanup(func() { wst.Close() })
	conn := dial(t, wst)

	s := analysis.Series{Frequencies: []float64{0, 10}, MagnitudesDB: []float64{-200, -3}}
	if err := wst.Send(SpectrumMessage("result", s)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Source  string          `json:"source"`
		Payload analysis.Series `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeSpectrum || msg.Source != "result" || msg.Payload.Len() != 2 || msg.Payload.MagnitudesDB[1] != -3 {
		t.Errorf("spectrum message = %+v", msg)
	}
}

func TestWebSocketCloseFlushesQueue(t *testing.T) {
	wst := NewWebSocketTransport()
	conn := dial(t, wst)

	for _, source := range []string{"target", "reference", "result"} {
		if err := wst.Send(ReportMessage(source, analysis.Report{SampleRate: 44100})); err != nil {
			t.Fatal(err)
		}
	}
	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"target", "reference", "result"} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON before %s: %v", want, err)
		}
		if msg.Type != TypeReport || msg.Source != want {
			t.Errorf("got %s/%s, want report/%s", msg.Type, msg.Source, want)
		}
	}
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst := NewWebSocketTransport()
	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Send(Message{Type: TypeLog}); err == nil {
		t.Error("Send after Close should fail")
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	f := Fanout{a, b}

	err := f.Send(Message{Type: TypeReport})
	if !errors.Is(err, boom) {
		t.Errorf("Send error = %v, want boom", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Error("every transport should receive the message")
	}
	if err := f.Close(); !errors.Is(err, boom) || !a.closed || !b.closed {
		t.Errorf("Close did not reach every transport: %v", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	prev := applog.GetLevel()
	applog.SetLevel(applog.LevelDebug)
	t.Cleanup(func() {
		applog.SetOutput(os.Stderr)
		applog.SetLevel(prev)
	})

	lt := NewLoggingTransport()
	r := analysis.Report{SampleRate: 44100, Channels: 2, PeakDB: -1, RMSDB: -14}
	if err := lt.Send(ReportMessage("target", r)); err != nil {
		t.Fatal(err)
	}

	want, _ := json.Marshal(ReportMessage("target", r))
	if !strings.Contains(buf.String(), string(want)) {
		t.Errorf("log output %q does not contain %s", buf.String(), want)
	}
}
