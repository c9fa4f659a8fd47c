package transport

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultWindowSize is the size of the mapped register window when the
// configuration does not specify one. Firmware register maps rarely
// exceed it; deployments with larger address spaces set WindowSize from
// the map's byte size.
const DefaultWindowSize = 1 << 20

// XDMAConfig configures an XDMA register window.
type XDMAConfig struct {
	// DeviceIndex selects /dev/xdma<N>_user.
	DeviceIndex int

	// WindowSize is the number of bytes to map. Zero means
	// DefaultWindowSize.
	WindowSize uint64
}

// XDMA is a Transport backed by the Xilinx XDMA driver's user BAR: the
// /dev/xdmaN_user character device is mapped into the process and
// register access becomes bounds-checked memory copies. Linux only.
type XDMA struct {
	cfg XDMAConfig

	mu        sync.Mutex
	file      *os.File
	window    []byte
	connected bool
}

// NewXDMA creates a transport for the given configuration. The device
// is not touched until Open.
func NewXDMA(cfg XDMAConfig) *XDMA {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	return &XDMA{cfg: cfg}
}

// Open maps the user window of the XDMA device.
func (x *XDMA) Open() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.connected {
		return nil
	}

	path := fmt.Sprintf("/dev/xdma%d_user", x.cfg.DeviceIndex)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (is the xdma driver loaded?)", ErrDeviceAbsent, path)
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}

	window, err := unix.Mmap(int(f.Fd()), 0, int(x.cfg.WindowSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("mapping %s: %w", path, err)
	}

	x.file = f
	x.window = window
	x.connected = true
	return nil
}

// Close unmaps the window and releases the device.
func (x *XDMA) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.connected {
		return nil
	}
	x.connected = false

	err := unix.Munmap(x.window)
	x.window = nil
	if cerr := x.file.Close(); err == nil {
		err = cerr
	}
	x.file = nil
	return err
}

// Connected implements Transport.
func (x *XDMA) Connected() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.connected
}

// Read implements Transport.
func (x *XDMA) Read(addr uint64, length uint32) ([]byte, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.connected {
		return nil, ErrNotConnected
	}
	end := addr + uint64(length)
	if end > uint64(len(x.window)) || end < addr {
		return nil, fmt.Errorf("%w: read [0x%X, 0x%X)", ErrOutOfWindow, addr, end)
	}

	out := make([]byte, length)
	copy(out, x.window[addr:end])
	return out, nil
}

// Write implements Transport.
func (x *XDMA) Write(addr uint64, data []byte) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.connected {
		return ErrNotConnected
	}
	end := addr + uint64(len(data))
	if end > uint64(len(x.window)) || end < addr {
		return fmt.Errorf("%w: write [0x%X, 0x%X)", ErrOutOfWindow, addr, end)
	}

	copy(x.window[addr:end], data)
	return nil
}

// Compile-time interface satisfaction check.
var _ Transport = (*XDMA)(nil)
