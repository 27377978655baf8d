package accessory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches accessory records over a Repository. It is the
// bridge's durable device registry: Restore loads prior records at
// startup, Register adds newly discovered sensors and Update persists
// refreshed fields of restored ones.
//
// All public methods are thread-safe. Returned records are copies.
type Registry struct {
	repo    Repository
	cache   map[string]*Record
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Restore reloads every persisted record into the cache.
func (r *Registry) Restore(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading accessories: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Record, len(records))
	for _, rec := range records {
		r.cache[rec.UUID] = rec.Copy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("accessories restored", "count", len(records))
	return nil
}

// GenerateIdentity returns the stable accessory UUID for seed.
func (r *Registry) GenerateIdentity(seed string) string {
	return GenerateIdentity(seed)
}

// Lookup returns a copy of the cached record with the given UUID.
func (r *Registry) Lookup(id string) (*Record, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	rec, ok := r.cache[id]
	if !ok {
		return nil, false
	}
	return rec.Copy(), true
}

// Register validates and persists new records, then caches them.
func (r *Registry) Register(ctx context.Context, records []*Record) error {
	for _, rec := range records {
		if err := Validate(rec); err != nil {
			return err
		}
	}
	if err := r.repo.Create(ctx, records...); err != nil {
		return fmt.Errorf("registering accessories: %w", err)
	}

	r.cacheMu.Lock()
	for _, rec := range records {
		r.cache[rec.UUID] = rec.Copy()
	}
	r.cacheMu.Unlock()

	for _, rec := range records {
		r.logger.Info("accessory registered", "uuid", rec.UUID, "name", rec.DisplayName)
	}
	return nil
}

// Update validates and persists changes to existing records, then caches them.
func (r *Registry) Update(ctx context.Context, records []*Record) error {
	for _, rec := range records {
		if err := Validate(rec); err != nil {
			return err
		}
	}
	if err := r.repo.Update(ctx, records...); err != nil {
		return fmt.Errorf("updating accessories: %w", err)
	}

	r.cacheMu.Lock()
	for _, rec := range records {
		r.cache[rec.UUID] = rec.Copy()
	}
	r.cacheMu.Unlock()

	for _, rec := range records {
		r.logger.Debug("accessory updated", "uuid", rec.UUID, "name", rec.DisplayName)
	}
	return nil
}

// List returns copies of every cached record ordered by display name.
func (r *Registry) List() []*Record {
	r.cacheMu.RLock()
	out := make([]*Record, 0, len(r.cache))
	for _, rec := range r.cache {
		out = append(out, rec.Copy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].UUID < out[j].UUID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Count returns the number of cached records.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
