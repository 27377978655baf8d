package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/govee-bridge/internal/clock"
	"github.com/nerrad567/govee-bridge/internal/reading"
)

// StallRecoveryDelay is how long the scheduler waits after an unrequested
// scan stop before resuming the scan. It also bounds how long a requested
// stop may go unconfirmed before cooldown begins anyway.
const StallRecoveryDelay = 5 * time.Second

// radioTimeout bounds every call into the radio.
const radioTimeout = 10 * time.Second

// State is the scheduler's position in the scan duty cycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateCoolingDown:
		return "cooling_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateScanning, StateCoolingDown} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}

// Config holds the duty cycle settings.
type Config struct {
	// ScanDuration is the active scan window. 0 scans indefinitely.
	ScanDuration time.Duration

	// CooldownDuration is the pause between windows. Ignored when
	// ScanDuration is 0.
	CooldownDuration time.Duration

	// Debug enables verbose radio logging.
	Debug bool
}

// Logger defines the logging interface used by the Scheduler.
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

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	State           State     `json:"state"`
	Running         bool      `json:"running"`
	CooldownPending bool      `json:"cooldown_pending"`
	Recovering      bool      `json:"recovering"`
	Cycles          uint64    `json:"cycles"`
	Stalls          uint64    `json:"stalls"`
	Since           time.Time `json:"since"`
}

// Scheduler runs the scan duty cycle over a Radio.
type Scheduler struct {
	radio     Radio
	clock     clock.Clock
	cfg       Config
	onReading func(reading.Reading)
	logger    Logger
	observer  func(Snapshot)

	ctx             context.Context
	running         bool
	state           State
	since           time.Time
	cooldownPending bool
	recovering      bool

	// window identifies the current scan window. A window timer only acts
	// while its window is still current.
	window uint64

	cycles uint64
	stalls uint64
}

// NewScheduler creates an idle scheduler. Readings from the radio are
// passed to onReading in emission order.
func NewScheduler(radio Radio, clk clock.Clock, cfg Config, onReading func(reading.Reading)) *Scheduler {
	if cfg.ScanDuration < 0 {
		cfg.ScanDuration = 0
	}
	if cfg.CooldownDuration < 0 {
		cfg.CooldownDuration = 0
	}
	if onReading == nil {
		onReading = func(reading.Reading) {}
	}
	return &Scheduler{
		radio:     radio,
		clock:     clk,
		cfg:       cfg,
		onReading: onReading,
		logger:    noopLogger{},
		state:     StateIdle,
		since:     clk.Now(),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetObserver registers fn to receive a snapshot after every state change.
func (s *Scheduler) SetObserver(fn func(Snapshot)) {
	s.observer = fn
}

// Start marks the scheduler running and begins the first scan window.
// ctx bounds every later radio call.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running {
		return ErrAlreadyRunning
	}
	s.ctx = ctx
	s.running = true
	s.radio.SetDebug(s.cfg.Debug)

	s.logger.Info("scan scheduler started",
		"scan_duration", s.cfg.ScanDuration,
		"cooldown_duration", s.cfg.CooldownDuration,
	)
	s.start()
	return nil
}

// start binds the radio callbacks and begins a scan window.
func (s *Scheduler) start() {
	s.radio.OnScanStart(s.HandleScanStarted)
	s.radio.OnScanStop(s.HandleScanStopped)

	s.cooldownPending = false
	s.recovering = false
	s.cycles++
	s.setState(StateScanning)

	ctx, cancel := s.radioContext()
	err := s.radio.StartScan(ctx, s.onReading)
	cancel()
	if err != nil {
		s.logger.Warn("starting scan failed, retrying", "error", err, "retry_in", StallRecoveryDelay)
		s.recovering = true
		s.notify()
		s.after("start-retry", StallRecoveryDelay, s.start)
		return
	}

	s.armWindow()
}

// armWindow opens a new scan window and, for a timed duty cycle, arms the
// timer that ends it.
func (s *Scheduler) armWindow() {
	s.window++
	if s.cfg.ScanDuration == 0 {
		return
	}
	window := s.window
	s.after("scan-window", s.cfg.ScanDuration, func() {
		if window != s.window || s.state != StateScanning || s.recovering {
			s.logger.Debug("stale scan window timer ignored", "window", window)
			return
		}
		s.endWindow()
	})
}

// endWindow requests the stop that leads into cooldown.
func (s *Scheduler) endWindow() {
	s.cooldownPending = true
	s.notify()

	ctx, cancel := s.radioContext()
	err := s.radio.StopScan(ctx)
	cancel()
	if err != nil {
		s.logger.Warn("stopping scan failed, extending scan window", "error", err)
		s.cooldownPending = false
		s.notify()
		s.armWindow()
		return
	}

	// The radio may never report the stop, e.g. when another client keeps
	// the adapter discovering.
	window := s.window
	s.after("stop-confirmation", StallRecoveryDelay, func() {
		if window != s.window || !s.cooldownPending {
			return
		}
		s.logger.Warn("scan stop was not confirmed, cooling down", "waited", StallRecoveryDelay)
		s.enterCooldown()
	})
}

// enterCooldown consumes the pending stop and schedules the next window.
func (s *Scheduler) enterCooldown() {
	s.cooldownPending = false
	s.setState(StateCoolingDown)
	s.logger.Debug("scan window ended, cooling down", "cooldown", s.cfg.CooldownDuration)
	s.after("cooldown", s.cfg.CooldownDuration, s.start)
}

// HandleScanStarted is the radio's scan-started callback.
func (s *Scheduler) HandleScanStarted() {
	s.logger.Debug("radio scan started", "state", s.state)
}

// HandleScanStopped is the radio's scan-stopped callback. It distinguishes
// a requested stop, which begins cooldown, from a stall.
func (s *Scheduler) HandleScanStopped() {
	if !s.running {
		s.logger.Debug("scan stop ignored, scheduler not running")
		return
	}

	if s.cooldownPending {
		s.enterCooldown()
		return
	}

	if s.state != StateScanning || s.recovering {
		s.logger.Debug("scan stop ignored", "state", s.state, "recovering", s.recovering)
		return
	}

	s.stalls++
	s.recovering = true
	s.notify()
	s.logger.Debug("scan stopped unexpectedly", "recovery_in", StallRecoveryDelay)
	s.after("stall-recovery", StallRecoveryDelay, s.recover)
}

// recover resumes a stalled scan without rebinding callbacks.
func (s *Scheduler) recover() {
	s.logger.Warn("radio scan stalled, resuming", "stalls", s.stalls)

	ctx, cancel := s.radioContext()
	err := s.radio.ResumeScan(ctx)
	cancel()
	if err != nil {
		s.logger.Warn("resuming scan failed, retrying", "error", err, "retry_in", StallRecoveryDelay)
		s.after("stall-recovery", StallRecoveryDelay, s.recover)
		return
	}

	s.recovering = false
	s.notify()
	s.armWindow()
}

// Shutdown clears the running flag so pending timers become no-ops, and
// asks the radio to stop.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.running {
		return ErrNotRunning
	}
	s.running = false
	wasScanning := s.state == StateScanning && !s.recovering
	s.cooldownPending = false
	s.recovering = false
	s.setState(StateIdle)
	s.logger.Info("scan scheduler stopped", "cycles", s.cycles, "stalls", s.stalls)

	if !wasScanning {
		return nil
	}
	if err := s.radio.StopScan(ctx); err != nil {
		return fmt.Errorf("stopping scan: %w", err)
	}
	return nil
}

// Snapshot returns the current scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		State:           s.state,
		Running:         s.running,
		CooldownPending: s.cooldownPending,
		Recovering:      s.recovering,
		Cycles:          s.cycles,
		Stalls:          s.stalls,
		Since:           s.since,
	}
}

// after schedules fn, which only runs if the scheduler is still running
// when the timer fires.
func (s *Scheduler) after(name string, d time.Duration, fn func()) {
	s.clock.AfterFunc(d, func() {
		if !s.running {
			s.logger.Debug("timer fired after shutdown", "timer", name)
			return
		}
		fn()
	})
}

func (s *Scheduler) setState(state State) {
	if s.state != state {
		s.state = state
		s.since = s.clock.Now()
	}
	s.notify()
}

func (s *Scheduler) notify() {
	if s.observer != nil {
		s.observer(s.Snapshot())
	}
}

func (s *Scheduler) radioContext() (context.Context, context.CancelFunc) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, radioTimeout)
}
