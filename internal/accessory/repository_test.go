package accessory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/govee-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/database"
	"github.com/nerrad567/govee-bridge/migrations"
)

// setupTestRepo opens an in-memory database with the real schema applied.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

// testRecord builds a valid record for the given identity key.
func testRecord(key string) *Record {
	return &Record{
		UUID:             GenerateIdentity(key),
		IdentityKey:      key,
		Address:          "A4:C1:38:00:00:01",
		Model:            "GVH5075",
		DisplayName:      "Govee GVH5075",
		BatteryThreshold: 25,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	seen := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := testRecord("GVH5075A1B2")
	rec.HumidityOffset = -1.5
	rec.LastSeen = &seen

	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("Create() should set timestamps")
	}

	got, err := repo.Get(ctx, rec.UUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IdentityKey != rec.IdentityKey || got.Model != rec.Model || got.DisplayName != rec.DisplayName {
		t.Errorf("Get() = %+v, want %+v", got, rec)
	}
	if got.HumidityOffset != -1.5 {
		t.Errorf("HumidityOffset = %v, want -1.5", got.HumidityOffset)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("A")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, testRecord("B"), testRecord("A"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Create() duplicate error = %v, want ErrExists", err)
	}

	// The batch is atomic: B must not have been stored.
	if _, err := repo.Get(ctx, GenerateIdentity("B")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(B) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	if _, err := repo.Get(context.Background(), GenerateIdentity("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := testRecord("GVH5179")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec.BatteryThreshold = 10
	rec.HumidityOffset = 2
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(ctx, rec.UUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.BatteryThreshold != 10 || got.HumidityOffset != 2 {
		t.Errorf("after Update threshold/offset = %d/%v, want 10/2", got.BatteryThreshold, got.HumidityOffset)
	}

	if err := repo.Update(ctx, testRecord("unknown")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() unknown error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	b := testRecord("B")
	b.DisplayName = "Govee Bedroom"
	a := testRecord("A")
	a.DisplayName = "Govee Attic"
	if err := repo.Create(ctx, b, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(list))
	}
	if list[0].DisplayName != "Govee Attic" {
		t.Errorf("List()[0] = %q, want ordered by display name", list[0].DisplayName)
	}
}
