package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/nerrad567/govee-bridge/internal/clock"
	"github.com/nerrad567/govee-bridge/internal/discovery"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-bridge/internal/reading"
	"github.com/nerrad567/govee-bridge/internal/scan"
	"github.com/nerrad567/govee-bridge/internal/sensor"
)

// shutdownTimeout bounds the final radio stop after the loop exits.
const shutdownTimeout = 5 * time.Second

// Config holds the platform options.
type Config struct {
	Name              string
	BatteryThreshold  int
	HumidityOffset    float64
	Debug             bool
	ScanDuration      time.Duration
	CooldownDuration  time.Duration
	IgnoreDeviceNames []string
}

// ConfigFrom extracts the platform options from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Name:              cfg.Platform.Name,
		BatteryThreshold:  cfg.Platform.BatteryThreshold,
		HumidityOffset:    cfg.Platform.HumidityOffset,
		Debug:             cfg.Platform.Debug,
		ScanDuration:      cfg.GetScanDuration(),
		CooldownDuration:  cfg.GetCooldownDuration(),
		IgnoreDeviceNames: cfg.Platform.IgnoreDeviceNames,
	}
}

// Registry is the accessory store the platform restores and writes through.
type Registry interface {
	discovery.Registry
	Restore(ctx context.Context) error
}

// Publisher receives sensor and scanner updates.
type Publisher interface {
	sensor.Publisher
	PublishScanner(snap scan.Snapshot)
}

// Logger defines the logging interface used by the Platform.
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

// Platform owns the discovery cache and scan scheduler for one process.
type Platform struct {
	cfg       Config
	registry  Registry
	radio     scan.Radio
	publisher Publisher
	clock     clock.Clock
	logger    Logger

	loop    *Loop
	ready   chan struct{}
	started atomic.Bool

	// Owned by the loop goroutine once Run starts.
	ctx       context.Context
	router    *discovery.Router
	scheduler *scan.Scheduler
}

// New creates a platform. Call Run to start it.
func New(cfg Config, registry Registry, radio scan.Radio, publisher Publisher) *Platform {
	return &Platform{
		cfg:       cfg,
		registry:  registry,
		radio:     radio,
		publisher: publisher,
		clock:     clock.Real{},
		logger:    noopLogger{},
		loop:      NewLoop(),
		ready:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the platform and the components it creates.
func (p *Platform) SetLogger(logger Logger) {
	p.logger = logger
}

// SetClock replaces the real clock. It must be called before Run.
func (p *Platform) SetClock(clk clock.Clock) {
	p.clock = clk
}

// Ready is closed once persisted accessories are restored and scanning
// has been started.
func (p *Platform) Ready() <-chan struct{} {
	return p.ready
}

// Run restores persisted accessories, starts the scan scheduler and runs
// the event loop until ctx is cancelled. Cancelling ctx is the shutdown
// signal: the scheduler stops and pending timers become no-ops.
//
// Run returns an error if restoring fails or the registry rejects a
// write for a restored or newly discovered sensor.
func (p *Platform) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := p.registry.Restore(ctx); err != nil {
		p.loop.close()
		return fmt.Errorf("restoring accessories: %w", err)
	}

	p.ctx = ctx
	cache := discovery.NewCache(p.registry, sensor.Binder(p.publisher), discovery.Settings{
		PlatformName:     p.cfg.Name,
		BatteryThreshold: p.cfg.BatteryThreshold,
		HumidityOffset:   p.cfg.HumidityOffset,
	})
	p.router = discovery.NewRouter(cache, discovery.NewIgnoreList(p.cfg.IgnoreDeviceNames))
	p.router.SetLogger(p.logger)

	p.scheduler = scan.NewScheduler(
		loopRadio{radio: p.radio, loop: p.loop},
		loopClock{clock: p.clock, loop: p.loop},
		scan.Config{
			ScanDuration:     p.cfg.ScanDuration,
			CooldownDuration: p.cfg.CooldownDuration,
			Debug:            p.cfg.Debug,
		},
		p.handleReading,
	)
	p.scheduler.SetLogger(p.logger)
	p.scheduler.SetObserver(p.publisher.PublishScanner)

	p.loop.Post(func() {
		if err := p.scheduler.Start(ctx); err != nil {
			p.loop.Stop(fmt.Errorf("starting scheduler: %w", err))
			return
		}
		close(p.ready)
		p.logger.Info("platform ready", "name", p.cfg.Name, "ignored_devices", len(p.cfg.IgnoreDeviceNames))
	})

	err := p.loop.Run(ctx)

	// The loop has exited; nothing else touches the scheduler now.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if serr := p.scheduler.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, scan.ErrNotRunning) {
		p.logger.Warn("stopping scan on shutdown failed", "error", serr)
	}

	stats := p.router.Stats()
	p.logger.Info("platform stopped",
		"sensors", p.router.Cache().Len(),
		"created", stats.Created,
		"restored", stats.Restored,
		"ignored", stats.Ignored,
		"rejected", stats.Rejected,
	)
	return err
}

// handleReading runs on the loop for every reading the radio emits.
func (p *Platform) handleReading(r reading.Reading) {
	if err := p.router.Handle(p.ctx, r); err != nil {
		if errors.Is(err, discovery.ErrPersistence) {
			p.loop.Stop(err)
		}
	}
}

// Devices returns the state of every bound sensor ordered by name.
func (p *Platform) Devices(ctx context.Context) ([]sensor.State, error) {
	var out []sensor.State
	err := p.loop.Do(ctx, func() {
		out = p.devices()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Device returns the state of the sensor with the given accessory ID.
func (p *Platform) Device(ctx context.Context, accessoryID string) (sensor.State, error) {
	var (
		out   sensor.State
		found bool
	)
	err := p.loop.Do(ctx, func() {
		for _, st := range p.devices() {
			if st.AccessoryID == accessoryID {
				out, found = st, true
				return
			}
		}
	})
	if err != nil {
		return sensor.State{}, err
	}
	if !found {
		return sensor.State{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, accessoryID)
	}
	return out, nil
}

// Scanner returns the scheduler snapshot.
func (p *Platform) Scanner(ctx context.Context) (scan.Snapshot, error) {
	var out scan.Snapshot
	err := p.loop.Do(ctx, func() {
		if p.scheduler != nil {
			out = p.scheduler.Snapshot()
		}
	})
	return out, err
}

// Stats returns the routing counters.
func (p *Platform) Stats(ctx context.Context) (discovery.Stats, error) {
	var out discovery.Stats
	err := p.loop.Do(ctx, func() {
		if p.router != nil {
			out = p.router.Stats()
		}
	})
	return out, err
}

// devices must run on the loop.
func (p *Platform) devices() []sensor.State {
	if p.router == nil {
		return []sensor.State{}
	}
	cache := p.router.Cache()
	out := make([]sensor.State, 0, cache.Len())
	for _, key := range cache.Keys() {
		h, _ := cache.Handler(key)
		if s, ok := h.(*sensor.Sensor); ok {
			out = append(out, s.State())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].AccessoryID < out[j].AccessoryID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
