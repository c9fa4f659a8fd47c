package regmap

import (
	"errors"
	"testing"
)

func TestResolveExactPath(t *testing.T) {
	m := loadTestMap(t, "fem.xml")

	t.Run("Found", func(t *testing.T) {
		regs, err := m.Resolve("sensors/temperature")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(regs) != 1 || regs[0].Addr != 0x204 {
			t.Errorf("got %v, want one register at 0x204", regs)
		}
	})

	t.Run("TrailingSlash", func(t *testing.T) {
		regs, err := m.Resolve("sensors/temperature/")
		if err != nil || len(regs) != 1 {
			t.Errorf("trailing slash should resolve: regs=%d err=%v", len(regs), err)
		}
	})

	t.Run("MissingSegment", func(t *testing.T) {
		_, err := m.Resolve("sensors/missing")
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("err = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("GroupAsTerminal", func(t *testing.T) {
		_, err := m.Resolve("sensors/")
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("err = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("RegisterMidPath", func(t *testing.T) {
		_, err := m.Resolve("ctrl/status/enable")
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("err = %v, want ErrInvalidPath", err)
		}
	})
}

func TestResolveBareName(t *testing.T) {
	m := loadTestMap(t, "fem.xml")

	// Two registers named "status" live in different sub-trees; both
	// are returned.
	regs, err := m.Resolve("status")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("matches = %d, want 2", len(regs))
	}
	addrs := map[uint64]bool{regs[0].Addr: true, regs[1].Addr: true}
	if !addrs[0x104] || !addrs[0x200] {
		t.Errorf("match addresses = %v, want 0x104 and 0x200", addrs)
	}

	t.Run("NoMatch", func(t *testing.T) {
		regs, err := m.Resolve("absent")
		if err != nil {
			t.Fatalf("bare-name miss should not error: %v", err)
		}
		if len(regs) != 0 {
			t.Errorf("matches = %d, want 0", len(regs))
		}
	})

	t.Run("GroupNameNotYielded", func(t *testing.T) {
		regs, _ := m.Resolve("sensors")
		if len(regs) != 0 {
			t.Errorf("group names must not resolve as registers, got %d", len(regs))
		}
	})
}

func TestPathOf(t *testing.T) {
	m := loadTestMap(t, "fem.xml")

	regs, _ := m.Resolve("status")
	for _, r := range regs {
		p, ok := m.PathOf(r)
		if !ok {
			t.Fatalf("PathOf(%v) not found", r)
		}
		back, err := m.Resolve(p)
		if err != nil || len(back) != 1 || back[0] != r {
			t.Errorf("PathOf %q does not resolve back to the same register", p)
		}
	}

	if _, ok := m.PathOf(&Register{Name: "stray"}); ok {
		t.Error("PathOf must fail for a register outside the map")
	}
}

func TestRegistersTreeOrder(t *testing.T) {
	m := loadTestMap(t, "fem.xml")

	regs := m.Registers()
	want := []string{"build_id", "version", "control", "status", "wide", "status", "temperature"}
	if len(regs) != len(want) {
		t.Fatalf("register count = %d, want %d", len(regs), len(want))
	}
	for i, r := range regs {
		if r.Name != want[i] {
			t.Errorf("regs[%d] = %q, want %q", i, r.Name, want[i])
		}
	}
}
