package accessory

import (
	"context"
	"errors"
	"testing"
)

// fakeRepo is an in-memory Repository with injectable failures.
type fakeRepo struct {
	records   map[string]*Record
	createErr error
	updateErr error
	creates   int
	updates   int
}

func newFakeRepo(recs ...*Record) *fakeRepo {
	f := &fakeRepo{records: make(map[string]*Record)}
	for _, r := range recs {
		f.records[r.UUID] = r.Copy()
	}
	return f
}

func (f *fakeRepo) List(context.Context) ([]*Record, error) {
	out := make([]*Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.Copy())
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*Record, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Copy(), nil
}

func (f *fakeRepo) Create(_ context.Context, recs ...*Record) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range recs {
		f.records[r.UUID] = r.Copy()
	}
	return nil
}

func (f *fakeRepo) Update(_ context.Context, recs ...*Record) error {
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, r := range recs {
		f.records[r.UUID] = r.Copy()
	}
	return nil
}

func TestRegistry_Restore(t *testing.T) {
	repo := newFakeRepo(testRecord("A"), testRecord("B"))
	reg := NewRegistry(repo)

	if err := reg.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	rec, ok := reg.Lookup(GenerateIdentity("A"))
	if !ok {
		t.Fatal("Lookup(A) not found after Restore")
	}
	if rec.IdentityKey != "A" {
		t.Errorf("IdentityKey = %q, want A", rec.IdentityKey)
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := NewRegistry(newFakeRepo(testRecord("A")))
	if err := reg.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	rec, _ := reg.Lookup(GenerateIdentity("A"))
	rec.DisplayName = "mutated"

	again, _ := reg.Lookup(GenerateIdentity("A"))
	if again.DisplayName == "mutated" {
		t.Error("mutating a looked-up record changed the cache")
	}
}

func TestRegistry_Register(t *testing.T) {
	repo := newFakeRepo()
	reg := NewRegistry(repo)

	rec := testRecord("NEW")
	if err := reg.Register(context.Background(), []*Record{rec}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, ok := reg.Lookup(rec.UUID); !ok {
		t.Error("registered record not cached")
	}
	if _, ok := repo.records[rec.UUID]; !ok {
		t.Error("registered record not persisted")
	}
}

func TestRegistry_RegisterFailureLeavesCacheUntouched(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("disk full")
	reg := NewRegistry(repo)

	rec := testRecord("NEW")
	err := reg.Register(context.Background(), []*Record{rec})
	if err == nil {
		t.Fatal("Register() expected error")
	}
	if !errors.Is(err, repo.createErr) {
		t.Errorf("Register() error = %v, want wrapped repo error", err)
	}
	if _, ok := reg.Lookup(rec.UUID); ok {
		t.Error("failed registration must not be cached")
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	repo := newFakeRepo()
	reg := NewRegistry(repo)

	bad := testRecord("X")
	bad.UUID = "not-a-uuid"
	if err := reg.Register(context.Background(), []*Record{bad}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Register() error = %v, want ErrInvalid", err)
	}
	if repo.creates != 0 {
		t.Error("invalid record reached the repository")
	}
}

func TestRegistry_Update(t *testing.T) {
	repo := newFakeRepo(testRecord("A"))
	reg := NewRegistry(repo)
	if err := reg.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	rec, _ := reg.Lookup(GenerateIdentity("A"))
	rec.BatteryThreshold = 40
	if err := reg.Update(context.Background(), []*Record{rec}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := reg.Lookup(rec.UUID)
	if got.BatteryThreshold != 40 {
		t.Errorf("BatteryThreshold = %d, want 40", got.BatteryThreshold)
	}
}

func TestRegistry_List(t *testing.T) {
	a := testRecord("A")
	a.DisplayName = "Zeta"
	b := testRecord("B")
	b.DisplayName = "Alpha"
	reg := NewRegistry(newFakeRepo(a, b))
	if err := reg.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	list := reg.List()
	if len(list) != 2 || list[0].DisplayName != "Alpha" {
		t.Errorf("List() = %v, want sorted by display name", list)
	}
}

func TestGenerateIdentity(t *testing.T) {
	a := GenerateIdentity("GVH5075A1B2")
	b := GenerateIdentity("GVH5075A1B2")
	c := GenerateIdentity("GVH5075A1B3")

	if a != b {
		t.Errorf("GenerateIdentity not deterministic: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different seeds produced the same identity")
	}
	if err := Validate(&Record{UUID: a, IdentityKey: "k", DisplayName: "n"}); err != nil {
		t.Errorf("generated identity is not a valid UUID: %v", err)
	}
}
