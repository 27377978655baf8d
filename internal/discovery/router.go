package discovery

import (
	"context"
	"errors"

	"github.com/nerrad567/govee-bridge/internal/reading"
)

// Logger defines the logging interface used by the Router.
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

// Stats counts routing results since the router was created.
type Stats struct {
	Rejected uint64 `json:"rejected"`
	Ignored  uint64 `json:"ignored"`
	Updated  uint64 `json:"updated"`
	Restored uint64 `json:"restored"`
	Created  uint64 `json:"created"`
	Failed   uint64 `json:"failed"`
}

// Router runs resolve, the ignore filter and cache routing for each reading.
type Router struct {
	cache  *Cache
	ignore IgnoreList
	stats  Stats
	logger Logger
}

// NewRouter creates a router over cache.
func NewRouter(cache *Cache, ignore IgnoreList) *Router {
	return &Router{cache: cache, ignore: ignore, logger: noopLogger{}}
}

// SetLogger sets the logger for the router.
func (rt *Router) SetLogger(logger Logger) {
	rt.logger = logger
}

// Handle processes one reading. Unidentifiable and ignored readings are
// dropped with a nil error; only registry and bind failures are returned.
func (rt *Router) Handle(ctx context.Context, r reading.Reading) error {
	key, err := reading.Resolve(r)
	if err != nil {
		rt.stats.Rejected++
		rt.logger.Debug("reading dropped", "address", r.Address, "error", err)
		return nil
	}

	if rt.ignore.Matches(r, key) {
		rt.stats.Ignored++
		rt.logger.Debug("reading ignored", "key", key, "address", r.Address)
		return nil
	}

	outcome, err := rt.cache.Route(ctx, key, r)
	if err != nil {
		rt.stats.Failed++
		if errors.Is(err, ErrPersistence) {
			rt.logger.Error("accessory persistence failed", "key", key, "error", err)
		} else {
			rt.logger.Warn("binding sensor failed", "key", key, "error", err)
		}
		return err
	}

	switch outcome {
	case OutcomeUpdated:
		rt.stats.Updated++
	case OutcomeRestored:
		rt.stats.Restored++
		rt.logger.Info("sensor restored", "key", key, "address", r.Address)
	case OutcomeCreated:
		rt.stats.Created++
		rt.logger.Info("sensor discovered", "key", key, "address", r.Address, "model", r.ModelHint)
	}
	return nil
}

// Stats returns the routing counters.
func (rt *Router) Stats() Stats {
	return rt.stats
}

// Cache returns the underlying cache.
func (rt *Router) Cache() *Cache {
	return rt.cache
}
