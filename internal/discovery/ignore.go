package discovery

import "github.com/nerrad567/govee-bridge/internal/reading"

// IgnoreList holds the normalized device names that are never tracked.
type IgnoreList map[string]struct{}

// NewIgnoreList normalizes names. Blank entries are skipped.
func NewIgnoreList(names []string) IgnoreList {
	l := make(IgnoreList, len(names))
	for _, n := range names {
		if k := reading.Normalize(n); k != "" {
			l[k] = struct{}{}
		}
	}
	return l
}

// Matches reports whether a reading with the given resolved key is ignored.
// The key, the model hint and the identity hint are each compared.
func (l IgnoreList) Matches(r reading.Reading, key string) bool {
	if len(l) == 0 {
		return false
	}
	for _, candidate := range [...]string{key, reading.Normalize(r.ModelHint), reading.Normalize(r.IdentityHint)} {
		if candidate == "" {
			continue
		}
		if _, ok := l[candidate]; ok {
			return true
		}
	}
	return false
}
