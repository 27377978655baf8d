package accessory

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a4:c1:38:aa:bb:cc", "A4:C1:38:AA:BB:CC"},
		{" A4-C1-38-AA-BB-CC ", "A4-C1-38-AA-BB-CC"},
		{"a4:c1:38:zz:bb:cc\n", "A4:C1:38::BB:CC"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeAddress(tt.in); got != tt.want {
				t.Errorf("SanitizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GVH5075_A1B2", "GVH5075_A1B2"},
		{"  Govee   H5075  ", "Govee H5075"},
		{"Living\x00Room\t<script>", "LivingRoom script"},
		{"Kid's Room (north)", "Kid's Room (north)"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := strings.Repeat("a", 100)
	if got := SanitizeName(long); len(got) != maxNameLength {
		t.Errorf("SanitizeName(long) length = %d, want %d", len(got), maxNameLength)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("Govee", "GVH5075_A1B2"); got != "Govee GVH5075_A1B2" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := DisplayName("", ""); got != "Sensor" {
		t.Errorf("DisplayName(empty) = %q, want Sensor", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Record { return testRecord("KEY") }

	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{"valid", func(*Record) {}, false},
		{"bad uuid", func(r *Record) { r.UUID = "nope" }, true},
		{"missing key", func(r *Record) { r.IdentityKey = "" }, true},
		{"missing name", func(r *Record) { r.DisplayName = "" }, true},
		{"threshold too high", func(r *Record) { r.BatteryThreshold = 101 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := Validate(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}

	if err := Validate(nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(nil) error = %v, want ErrInvalid", err)
	}
}
