package transport

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestLoopbackEcho(t *testing.T) {
	lb := NewLoopback()
	if err := lb.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := lb.Write(0x100, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := lb.Read(0x100, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %x, want %x", got, data)
	}
}

func TestLoopbackZeroFill(t *testing.T) {
	lb := NewLoopback()
	lb.Open()

	got, err := lb.Read(0x0, 8)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("unwritten memory = %x, want zeroes", got)
	}
}

func TestLoopbackDisconnected(t *testing.T) {
	lb := NewLoopback()

	if lb.Connected() {
		t.Error("new loopback should start disconnected")
	}
	if _, err := lb.Read(0, 4); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Read err = %v, want ErrNotConnected", err)
	}
	if err := lb.Write(0, []byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write err = %v, want ErrNotConnected", err)
	}

	lb.Open()
	lb.Write(0, []byte{0x7F})
	lb.Close()

	if lb.Connected() {
		t.Error("Connected() = true after Close")
	}

	// Memory survives a close.
	lb.Open()
	got, _ := lb.Read(0, 1)
	if got[0] != 0x7F {
		t.Errorf("memory after reopen = %x, want 7f", got)
	}
}

func TestLoopbackPreload(t *testing.T) {
	lb := NewLoopback()
	lb.Preload(0x4, []byte{0x01, 0x02, 0x03, 0x04})
	lb.Open()

	got, _ := lb.Read(0x4, 4)
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("preloaded read = %x", got)
	}
}

func TestLoopbackErrorInjection(t *testing.T) {
	lb := NewLoopback()
	lb.Open()

	boom := errors.New("bus fault")
	lb.SetReadError(boom)
	if _, err := lb.Read(0, 4); !errors.Is(err, boom) {
		t.Errorf("Read err = %v, want injected error", err)
	}

	lb.SetReadError(nil)
	if _, err := lb.Read(0, 4); err != nil {
		t.Errorf("Read err = %v after clearing injection", err)
	}

	lb.SetWriteError(boom)
	if err := lb.Write(0, []byte{1}); !errors.Is(err, boom) {
		t.Errorf("Write err = %v, want injected error", err)
	}
}

func TestLoopbackConcurrent(t *testing.T) {
	lb := NewLoopback()
	lb.Open()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := uint64(n * 16)
			for j := 0; j < 100; j++ {
				lb.Write(addr, []byte{byte(n), byte(n), byte(n), byte(n)})
				got, err := lb.Read(addr, 4)
				if err != nil || got[0] != byte(n) {
					t.Errorf("worker %d: got %x err %v", n, got, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
