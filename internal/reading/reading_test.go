package reading

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC_123", "ABC123"},
		{" ABC_123 ", "ABC123"},
		{"abc_123", "ABC123"},
		{"A_B", "AB"},
		{" A_B ", "AB"},
		{"_ A", "A"},
		{"GVH5075_A1B2", "GVH5075A1B2"},
		{"Govee H5075", "GOVEE H5075"},
		{"   ", ""},
		{"___", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		r       Reading
		want    string
		wantErr error
	}{
		{
			name: "identity hint preferred",
			r:    Reading{IdentityHint: "a4c1_38aa", ModelHint: "GVH5075_XYZ", Address: "A4:C1:38:AA:00:01"},
			want: "A4C138AA",
		},
		{
			name: "model hint fallback",
			r:    Reading{ModelHint: " GVH5075_XYZ ", Address: "A4:C1:38:AA:00:01"},
			want: "GVH5075XYZ",
		},
		{
			name: "blank identity hint falls back",
			r:    Reading{IdentityHint: " _ ", ModelHint: "H5179", Address: "x"},
			want: "H5179",
		},
		{
			name:    "no hints",
			r:       Reading{Address: "A4:C1:38:AA:00:01"},
			wantErr: ErrUnidentifiable,
		},
		{
			name:    "whitespace hints",
			r:       Reading{IdentityHint: "  ", ModelHint: "\t", Address: "x"},
			wantErr: ErrUnidentifiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_FormattingVariantsCollapse(t *testing.T) {
	a, errA := Resolve(Reading{ModelHint: "ABC_123"})
	b, errB := Resolve(Reading{ModelHint: " ABC_123 "})
	if errA != nil || errB != nil {
		t.Fatalf("Resolve() errors = %v, %v", errA, errB)
	}
	if a != b || a != "ABC123" {
		t.Errorf("keys = %q, %q, want both %q", a, b, "ABC123")
	}
}
