package access

import (
	"errors"
	"testing"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"static", PolicyStatic},
		{"once", PolicyStatic},
		{"immediate", PolicyImmediate},
		{"direct", PolicyImmediate},
		{"polled", PolicyPolled},
		{"looped", PolicyPolled},
		{"STATIC", PolicyStatic},
		{"  Polled ", PolicyPolled},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if err != nil {
				t.Fatalf("ParsePolicy(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParsePolicy("sometimes"); !errors.Is(err, ErrUnknownPolicy) {
			t.Errorf("err = %v, want ErrUnknownPolicy", err)
		}
	})
}

func TestPolicyString(t *testing.T) {
	if PolicyStatic.String() != "static" ||
		PolicyImmediate.String() != "immediate" ||
		PolicyPolled.String() != "polled" {
		t.Error("policy names changed")
	}
	if Policy(42).String() != "unknown" {
		t.Errorf("Policy(42) = %q", Policy(42).String())
	}
}
