package accessory

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	maxNameLength    = 64
	maxAddressLength = 64
)

// SanitizeAddress upper-cases a radio address and drops every character
// other than hex digits, ':' and '-'.
func SanitizeAddress(addr string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(addr)) {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F', r == ':', r == '-':
			b.WriteRune(r)
		}
		if b.Len() >= maxAddressLength {
			break
		}
	}
	return b.String()
}

// SanitizeName keeps letters, digits, spaces and ' . - _ ( )', collapses
// runs of whitespace and truncates to 64 characters.
func SanitizeName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune("'.-_()", r):
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := []rune(b.String())
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	return strings.TrimSpace(string(out))
}

// DisplayName joins the platform label and the sanitized model.
func DisplayName(platformName, model string) string {
	name := SanitizeName(platformName + " " + model)
	if name == "" {
		return "Sensor"
	}
	return name
}

// Validate checks the fields every stored record must carry.
func Validate(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalid)
	}
	if _, err := uuid.Parse(r.UUID); err != nil {
		return fmt.Errorf("%w: uuid %q: %w", ErrInvalid, r.UUID, err)
	}
	if r.IdentityKey == "" {
		return fmt.Errorf("%w: identity key is required", ErrInvalid)
	}
	if r.DisplayName == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalid)
	}
	if r.BatteryThreshold < 0 || r.BatteryThreshold > 100 {
		return fmt.Errorf("%w: battery threshold %d out of range", ErrInvalid, r.BatteryThreshold)
	}
	return nil
}
