package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/reading"
)

// Handler owns the state of one sensor.
type Handler interface {
	// UpdateReading consumes a further reading for an already bound sensor.
	// It must not re-register the sensor.
	UpdateReading(r reading.Reading)
}

// Activator is implemented by handlers with side effects of their own.
// Activate runs once, after the record is persisted and the handler is live.
// A handler whose record fails to persist is dropped without activation.
type Activator interface {
	Activate()
}

// BindFunc constructs the handler for a record. It is called exactly once
// per identity key.
type BindFunc func(rec *accessory.Record, initial reading.Reading) (Handler, error)

// Registry is the persistent accessory store the cache consults.
type Registry interface {
	GenerateIdentity(seed string) string
	Lookup(id string) (*accessory.Record, bool)
	Register(ctx context.Context, records []*accessory.Record) error
	Update(ctx context.Context, records []*accessory.Record) error
}

// Outcome is the result of routing one reading.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeRestored
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeRestored:
		return "restored"
	case OutcomeCreated:
		return "created"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Settings are the configuration values copied onto records.
type Settings struct {
	PlatformName     string
	BatteryThreshold int
	HumidityOffset   float64
}

// Cache holds the live handler of every sensor routed in this process.
type Cache struct {
	registry Registry
	bind     BindFunc
	settings Settings
	handlers map[string]Handler
	now      func() time.Time
}

// NewCache creates an empty cache.
func NewCache(registry Registry, bind BindFunc, settings Settings) *Cache {
	return &Cache{
		registry: registry,
		bind:     bind,
		settings: settings,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Route delivers r to the handler for key, binding one first if needed.
func (c *Cache) Route(ctx context.Context, key string, r reading.Reading) (Outcome, error) {
	if h, ok := c.handlers[key]; ok {
		h.UpdateReading(r)
		return OutcomeUpdated, nil
	}

	id := c.registry.GenerateIdentity(key)
	if rec, ok := c.registry.Lookup(id); ok {
		return OutcomeRestored, c.restore(ctx, key, rec, r)
	}
	return OutcomeCreated, c.create(ctx, key, id, r)
}

func (c *Cache) restore(ctx context.Context, key string, rec *accessory.Record, r reading.Reading) error {
	rec.BatteryThreshold = c.settings.BatteryThreshold
	rec.HumidityOffset = c.settings.HumidityOffset
	seen := c.seenAt(r)
	rec.LastSeen = &seen

	h, err := c.bind(rec, r)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, key, err)
	}
	if err := c.registry.Update(ctx, []*accessory.Record{rec}); err != nil {
		return fmt.Errorf("%w: updating %s: %w", ErrPersistence, rec.UUID, err)
	}

	c.insert(key, h)
	return nil
}

func (c *Cache) create(ctx context.Context, key, id string, r reading.Reading) error {
	model := accessory.SanitizeName(r.ModelHint)
	if model == "" {
		model = accessory.SanitizeName(key)
	}
	seen := c.seenAt(r)
	rec := &accessory.Record{
		UUID:             id,
		IdentityKey:      key,
		Address:          accessory.SanitizeAddress(r.Address),
		Model:            model,
		DisplayName:      accessory.DisplayName(c.settings.PlatformName, model),
		BatteryThreshold: c.settings.BatteryThreshold,
		HumidityOffset:   c.settings.HumidityOffset,
		LastSeen:         &seen,
	}

	h, err := c.bind(rec, r)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, key, err)
	}
	if err := c.registry.Register(ctx, []*accessory.Record{rec}); err != nil {
		return fmt.Errorf("%w: registering %s: %w", ErrPersistence, id, err)
	}

	c.insert(key, h)
	return nil
}

func (c *Cache) insert(key string, h Handler) {
	c.handlers[key] = h
	if a, ok := h.(Activator); ok {
		a.Activate()
	}
}

func (c *Cache) seenAt(r reading.Reading) time.Time {
	if !r.ReceivedAt.IsZero() {
		return r.ReceivedAt.UTC()
	}
	return c.now().UTC()
}

// Len returns the number of live handlers.
func (c *Cache) Len() int {
	return len(c.handlers)
}

// Handler returns the live handler for key.
func (c *Cache) Handler(key string) (Handler, bool) {
	h, ok := c.handlers[key]
	return h, ok
}

// Keys returns the identity keys of every live handler in sorted order.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.handlers))
	for k := range c.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
