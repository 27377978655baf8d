// Package reading defines the unit the radio emits for one sensor
// observation and resolves it to a stable identity key.
//
// A Reading carries two optional identity hints. Resolve prefers the
// IdentityHint (a hardware-assigned id) and falls back to the ModelHint
// (the advertised model or local name). Both are normalized so that
// formatting variants of the same device collapse onto one key:
//
//	Normalize(" ABC_123 ") == Normalize("abc_123") == "ABC123"
//
// A reading with neither hint is rejected with ErrUnidentifiable and
// must not reach the discovery cache.
package reading
