package log

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleEvent(op Op, register string) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		SessionID: "11111111-2222-3333-4444-555555555555",
		Op:        op,
		Origin:    OriginCaller,
		Register:  register,
		Addr:      0x104,
		Policy:    "polled",
		Value:     0xBEEF,
		Fetched:   true,
		Connected: true,
		Latency:   3 * time.Microsecond,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ev := sampleEvent(OpWrite, "control")

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	back, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if back.Op != ev.Op || back.Register != ev.Register ||
		back.Addr != ev.Addr || back.Value != ev.Value ||
		back.Latency != ev.Latency || back.SessionID != ev.SessionID {
		t.Errorf("round trip changed event: %+v vs %+v", back, ev)
	}
	if !back.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("timestamp = %v, want %v", back.Timestamp, ev.Timestamp)
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.cborlog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	fl.Log(sampleEvent(OpRead, "status"))
	fl.Log(sampleEvent(OpWrite, "control"))
	pollEv := sampleEvent(OpPoll, "status")
	pollEv.Origin = OriginPoller
	fl.Log(pollEv)
	failEv := sampleEvent(OpPoll, "temperature")
	failEv.Origin = OriginPoller
	failEv.Error = "bus fault"
	fl.Log(failEv)
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Log after close is ignored, not a panic.
	fl.Log(sampleEvent(OpRead, "late"))

	t.Run("ReadAll", func(t *testing.T) {
		r, err := NewReader(path)
		if err != nil {
			t.Fatalf("NewReader failed: %v", err)
		}
		defer r.Close()

		events, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(events) != 4 {
			t.Fatalf("events = %d, want 4", len(events))
		}
		if events[1].Register != "control" || events[1].Op != OpWrite {
			t.Errorf("events[1] = %+v", events[1])
		}
	})

	t.Run("FilterByOrigin", func(t *testing.T) {
		origin := OriginPoller
		r, err := NewFilteredReader(path, Filter{Origin: &origin})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		events, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("poller events = %d, want 2", len(events))
		}
	})

	t.Run("FilterErrorsOnly", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{ErrorsOnly: true})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		events, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(events) != 1 || events[0].Register != "temperature" {
			t.Errorf("error events = %+v", events)
		}
	})

	t.Run("FilterByRegister", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{Register: "status"})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		events, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("status events = %d, want 2", len(events))
		}
	})
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	a := NewSlogAdapter(logger)
	a.Log(sampleEvent(OpRead, "status"))

	out := buf.String()
	for _, want := range []string{"op=READ", "register=status", "addr=0x104", "policy=polled"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}

	t.Run("ErrorAtWarn", func(t *testing.T) {
		buf.Reset()
		ev := sampleEvent(OpWrite, "control")
		ev.Error = "bus fault"
		a.Log(ev)
		if !strings.Contains(buf.String(), "level=WARN") {
			t.Errorf("failed ops should log at warn: %s", buf.String())
		}
	})
}

func TestOpAndOriginStrings(t *testing.T) {
	if OpFieldWrite.String() != "FIELD_WRITE" {
		t.Errorf("OpFieldWrite = %q", OpFieldWrite.String())
	}
	if Op(200).String() != "UNKNOWN" {
		t.Errorf("unknown op = %q", Op(200).String())
	}
	if OriginPoller.String() != "POLLER" {
		t.Errorf("OriginPoller = %q", OriginPoller.String())
	}
}
