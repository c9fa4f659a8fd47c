package regaccess_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fpga-tools/regaccess-go/cmd/regmap-tool/commands"
	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/log"
	"github.com/fpga-tools/regaccess-go/pkg/service"
	"github.com/fpga-tools/regaccess-go/pkg/transport"
)

const firmwareXML = `<node id="fem" description="front end module">
  <node id="info" description="identity block">
    <node id="build_id" absolute_offset="0x0" description="firmware build id" permission="r" size="1"/>
    <node id="version" absolute_offset="0x4" description="firmware version" permission="r" size="1">
      <node id="major" absolute_offset="0x4" mask="0xFF00" permission="r"/>
      <node id="minor" absolute_offset="0x4" mask="0x00FF" permission="r"/>
    </node>
  </node>
  <node id="ctrl" description="control block">
    <node id="control" absolute_offset="0x100" description="main control" permission="rw" size="1">
      <node id="enable" absolute_offset="0x100" mask="0x1" permission="rw"/>
      <node id="mode" absolute_offset="0x100" mask="0x6" permission="rw"/>
    </node>
    <node id="status" absolute_offset="0x104" description="link status" permission="r" size="1"/>
  </node>
</node>
`

const overwriteJSON = `{
  "build_id": {"policy": "static"},
  "ctrl/status": {"policy": "polled", "frequency": 50}
}
`

// TestE2E_ConvertAndServe walks the whole pipeline: firmware XML in,
// converted JSON map, service session over the loopback transport,
// path-addressed reads and writes, polled refresh, event log out.
func TestE2E_ConvertAndServe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "fem.xml")
	policyPath := filepath.Join(dir, "policy.json")
	jsonPath := filepath.Join(dir, "fem.json")
	logPath := filepath.Join(dir, "session.rlog")

	if err := os.WriteFile(xmlPath, []byte(firmwareXML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policyPath, []byte(overwriteJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	// Convert: defaults immediate, overwrites pin build_id and status.
	var out bytes.Buffer
	err := commands.RunConvert(xmlPath, commands.ConvertOptions{
		DefaultPolicy:   "immediate",
		DefaultPollRate: 1000,
		PolicyFile:      policyPath,
		Output:          jsonPath,
	}, &out)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	// Serve the converted map over a loopback device.
	tr := transport.NewLoopback()
	tr.Preload(0x0, []byte{0xEF, 0xBE, 0xAD, 0xDE})
	tr.Preload(0x4, []byte{0x05, 0x03, 0x00, 0x00})
	tr.Preload(0x104, []byte{0x01, 0x00, 0x00, 0x00})

	svc, err := service.NewWithTransport(service.Config{
		MapFile:    jsonPath,
		ReadOnOpen: true,
		LogFile:    logPath,
	}, tr)
	if err != nil {
		t.Fatalf("NewWithTransport failed: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Static register, cached from the opening sweep.
	v, err := svc.Get("build_id", false)
	if err != nil {
		t.Fatalf("Get build_id failed: %v", err)
	}
	if v.(uint64) != 0xDEADBEEF {
		t.Errorf("build_id = 0x%X, want 0xDEADBEEF", v)
	}

	// Field reads through the version register.
	if v, err = svc.Get("info/version/major", false); err != nil || v.(uint64) != 3 {
		t.Errorf("major = %v (%v), want 3", v, err)
	}
	if v, err = svc.Get("version/minor", false); err != nil || v.(uint64) != 5 {
		t.Errorf("minor = %v (%v), want 5", v, err)
	}

	// Write a field, read the register back through the echo device.
	if err := svc.SetValue("ctrl/control/mode", 2); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if v, err = svc.Get("ctrl/control", false); err != nil || v.(uint64) != 0x4 {
		t.Errorf("control = %v (%v), want 0x4", v, err)
	}

	// Polled register refreshes in the background. The overwrite asks
	// for 50ms, which the engine floors to 100ms.
	info, err := svc.Get("ctrl/status", true)
	if err != nil {
		t.Fatalf("Get metadata failed: %v", err)
	}
	ri := info.(*service.RegisterInfo)
	if ri.Policy != access.PolicyPolled.String() || ri.PollInterval != access.MinPollInterval {
		t.Errorf("status = %s@%s, want polled@%s", ri.Policy, ri.PollInterval, access.MinPollInterval)
	}

	tr.Preload(0x104, []byte{0x07, 0x00, 0x00, 0x00})
	deadline := time.Now().Add(3 * time.Second)
	for {
		v, err := svc.Get("ctrl/status", false)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v.(uint64) == 0x7 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("polled register never refreshed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Writes to read-only registers are refused.
	if err := svc.SetValue("ctrl/status", 1); !errors.Is(err, access.ErrNotWritable) {
		t.Errorf("err = %v, want ErrNotWritable", err)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The event log tells the whole story back.
	r, err := log.NewReader(logPath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	events, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) < 5 {
		t.Fatalf("events = %d, want open/sweep/accesses/polls/close", len(events))
	}
	if events[0].Op != log.OpOpen || events[len(events)-1].Op != log.OpClose {
		t.Errorf("log should open with OPEN and end with CLOSE")
	}
	sawPoll := false
	for _, ev := range events {
		if ev.Op == log.OpPoll && ev.Origin == log.OriginPoller {
			sawPoll = true
		}
		if ev.SessionID != svc.SessionID() {
			t.Errorf("event session = %q, want %q", ev.SessionID, svc.SessionID())
		}
	}
	if !sawPoll {
		t.Error("no poller events in log")
	}
}

// TestE2E_DisconnectedDegradation exercises the cache fallback: reads
// keep serving the last known values after the transport drops, writes
// fail fast.
func TestE2E_DisconnectedDegradation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "fem.xml")
	jsonPath := filepath.Join(dir, "fem.json")
	if err := os.WriteFile(xmlPath, []byte(firmwareXML), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := commands.RunConvert(xmlPath, commands.ConvertOptions{
		DefaultPolicy:   "immediate",
		DefaultPollRate: 1000,
		Output:          jsonPath,
	}, &out)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	tr := transport.NewLoopback()
	tr.Preload(0x104, []byte{0x2A, 0x00, 0x00, 0x00})
	svc, err := service.NewWithTransport(service.Config{
		MapFile:    jsonPath,
		ReadOnOpen: true,
	}, tr)
	if err != nil {
		t.Fatalf("NewWithTransport failed: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	// Drop the link underneath the service.
	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	v, err := svc.Get("ctrl/status", false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.(uint64) != 0x2A {
		t.Errorf("value = 0x%X, want cached 0x2A", v)
	}

	if err := svc.SetValue("ctrl/control", 1); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}
