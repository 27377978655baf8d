package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/govee-bridge/internal/reading"
)

func TestIgnoreList_Matches(t *testing.T) {
	list := NewIgnoreList([]string{"GVH5075_DEAD", " ", "a4c1_beef"})

	tests := []struct {
		name string
		r    reading.Reading
		want bool
	}{
		{"model hint match", reading.Reading{ModelHint: "GVH5075_DEAD"}, true},
		{"model hint formatting variant", reading.Reading{ModelHint: " gvh5075_dead "}, true},
		{"identity hint match", reading.Reading{IdentityHint: "A4C1BEEF", ModelHint: "GVH5075_OK"}, true},
		{"model ignored while identity hint keys", reading.Reading{IdentityHint: "X1", ModelHint: "GVH5075_DEAD"}, true},
		{"no match", reading.Reading{ModelHint: "GVH5075_LIVE"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := reading.Resolve(tt.r)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := list.Matches(tt.r, key); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	if len(list) != 2 {
		t.Errorf("blank entries should be skipped, len = %d", len(list))
	}
	if NewIgnoreList(nil).Matches(reading.Reading{ModelHint: "A"}, "A") {
		t.Error("empty list matched")
	}
}

func TestRouter_Handle(t *testing.T) {
	reg := newFakeRegistry()
	b := &binder{}
	rt := NewRouter(NewCache(reg, b.bind, testSettings), NewIgnoreList([]string{"GVH5075_DEAD"}))
	ctx := context.Background()

	readings := []reading.Reading{
		{Address: "no-hints"},
		{ModelHint: "GVH5075_DEAD", Address: "ignored"},
		{ModelHint: "GVH5075_A1B2", Address: "a"},
		{ModelHint: "GVH5075_A1B2", Address: "a"},
		{ModelHint: "GVH5179_C3D4", Address: "b"},
	}
	for _, r := range readings {
		if err := rt.Handle(ctx, r); err != nil {
			t.Fatalf("Handle(%+v) error = %v", r, err)
		}
	}

	want := Stats{Rejected: 1, Ignored: 1, Created: 2, Updated: 1}
	if got := rt.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if rt.Cache().Len() != 2 {
		t.Errorf("cache Len() = %d, want 2", rt.Cache().Len())
	}
	if len(reg.registered) != 2 {
		t.Errorf("registered %d records, want 2", len(reg.registered))
	}
}

func TestRouter_RejectedReadingDoesNotTouchCache(t *testing.T) {
	reg := newFakeRegistry()
	b := &binder{}
	rt := NewRouter(NewCache(reg, b.bind, testSettings), nil)

	if err := rt.Handle(context.Background(), reading.Reading{IdentityHint: " ", ModelHint: "_", Address: "x"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rt.Cache().Len() != 0 || len(b.handlers) != 0 || len(reg.registered) != 0 {
		t.Error("rejected reading mutated the cache or registry")
	}
}

func TestRouter_IgnoredReadingDoesNotConsumeSlot(t *testing.T) {
	reg := newFakeRegistry()
	rt := NewRouter(NewCache(reg, (&binder{}).bind, testSettings), NewIgnoreList([]string{"H5179"}))

	if err := rt.Handle(context.Background(), reading.Reading{ModelHint: "H5179", Address: "x"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rt.Cache().Len() != 0 || len(reg.registered) != 0 {
		t.Error("ignored sensor consumed a cache slot or registry record")
	}
}

func TestRouter_PersistenceErrorReturned(t *testing.T) {
	reg := newFakeRegistry()
	reg.registerErr = errors.New("disk full")
	rt := NewRouter(NewCache(reg, (&binder{}).bind, testSettings), nil)

	err := rt.Handle(context.Background(), reading.Reading{ModelHint: "K", Address: "x"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Handle() error = %v, want ErrPersistence", err)
	}
	if rt.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", rt.Stats().Failed)
	}
}
