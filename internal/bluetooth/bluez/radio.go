package bluez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/govee-bridge/internal/reading"
	"github.com/nerrad567/govee-bridge/internal/scan"
)

// BlueZ D-Bus names.
const (
	bluezBus          = "org.bluez"
	bluezAdapter1     = "org.bluez.Adapter1"
	bluezDevice1      = "org.bluez.Device1"
	dbusProperties    = "org.freedesktop.DBus.Properties"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	errInProgress = "org.bluez.Error.InProgress"
)

// signalBuffer is the D-Bus signal channel capacity.
const signalBuffer = 256

// Logger defines the logging interface used by the Radio.
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

var _ scan.Radio = (*Radio)(nil)

// Radio scans for BLE advertisements through BlueZ.
type Radio struct {
	adapter     string
	adapterPath dbus.ObjectPath
	decoder     Decoder
	logger      Logger
	now         func() time.Time

	mu        sync.Mutex
	conn      *dbus.Conn
	devices   map[dbus.ObjectPath]*Advertisement
	onReading func(reading.Reading)
	onStart   func()
	onStop    func()
	debug     bool

	sigCh  chan *dbus.Signal
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a radio for the named adapter, e.g. "hci0". A nil decoder
// selects NameDecoder with the default prefixes.
func New(adapter string, decoder Decoder) *Radio {
	if decoder == nil {
		decoder = NameDecoder{}
	}
	return &Radio{
		adapter:     adapter,
		adapterPath: dbus.ObjectPath("/org/bluez/" + adapter),
		decoder:     decoder,
		logger:      noopLogger{},
		now:         time.Now,
		devices:     make(map[dbus.ObjectPath]*Advertisement),
	}
}

// SetLogger sets the logger for the radio.
func (r *Radio) SetLogger(logger Logger) {
	r.logger = logger
}

// Open connects to the system bus, checks the adapter and subscribes to
// BlueZ signals.
func (r *Radio) Open(ctx context.Context) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connecting to system bus: %w", err)
	}

	adapter := conn.Object(bluezBus, r.adapterPath)
	var address dbus.Variant
	if err := adapter.CallWithContext(ctx, dbusProperties+".Get", 0, bluezAdapter1, "Address").Store(&address); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAdapterNotFound, r.adapter, err)
	}

	for _, opts := range matchRules() {
		if err := conn.AddMatchSignal(opts...); err != nil {
			return fmt.Errorf("adding signal match: %w", err)
		}
	}

	r.mu.Lock()
	r.conn = conn
	r.sigCh = make(chan *dbus.Signal, signalBuffer)
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	conn.Signal(r.sigCh)
	r.wg.Add(1)
	go r.listen(r.sigCh, r.stopCh)

	r.logger.Info("bluetooth adapter opened", "adapter", r.adapter, "address", address.Value())
	return nil
}

// Close unsubscribes from BlueZ signals. The shared system bus
// connection stays open.
func (r *Radio) Close() error {
	r.mu.Lock()
	conn, sigCh, stopCh := r.conn, r.sigCh, r.stopCh
	r.conn, r.sigCh, r.stopCh = nil, nil, nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.RemoveSignal(sigCh)
	close(stopCh)
	r.wg.Wait()

	var errs []error
	for _, opts := range matchRules() {
		if err := conn.RemoveMatchSignal(opts...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func matchRules() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(bluezBus),
			dbus.WithMatchInterface(dbusObjectManager),
			dbus.WithMatchMember("InterfacesAdded"),
		},
		{
			dbus.WithMatchSender(bluezBus),
			dbus.WithMatchInterface(dbusObjectManager),
			dbus.WithMatchMember("InterfacesRemoved"),
		},
		{
			dbus.WithMatchSender(bluezBus),
			dbus.WithMatchInterface(dbusProperties),
			dbus.WithMatchMember("PropertiesChanged"),
		},
	}
}

// StartScan sets an LE discovery filter, starts discovery and delivers
// every decoded advertisement to onReading.
func (r *Radio) StartScan(ctx context.Context, onReading func(reading.Reading)) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.onReading = onReading
	r.mu.Unlock()

	if err := r.loadManagedObjects(ctx, conn); err != nil {
		r.logger.Warn("loading known devices failed", "error", err)
	}

	adapter := conn.Object(bluezBus, r.adapterPath)
	filter := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant("le"),
		"DuplicateData": dbus.MakeVariant(true),
	}
	if call := adapter.CallWithContext(ctx, bluezAdapter1+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		return fmt.Errorf("setting discovery filter: %w", call.Err)
	}
	return r.startDiscovery(ctx, conn)
}

// ResumeScan restarts discovery with the callbacks already bound.
func (r *Radio) ResumeScan(ctx context.Context) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}
	return r.startDiscovery(ctx, conn)
}

func (r *Radio) startDiscovery(ctx context.Context, conn *dbus.Conn) error {
	call := conn.Object(bluezBus, r.adapterPath).CallWithContext(ctx, bluezAdapter1+".StartDiscovery", 0)
	if call.Err != nil && dbusErrorName(call.Err) != errInProgress {
		return fmt.Errorf("starting discovery: %w", call.Err)
	}
	r.logDebug("discovery start requested", "adapter", r.adapter)
	return nil
}

// StopScan requests BlueZ stop discovery. Completion is reported through
// the scan-stopped callback.
func (r *Radio) StopScan(ctx context.Context) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}
	call := conn.Object(bluezBus, r.adapterPath).CallWithContext(ctx, bluezAdapter1+".StopDiscovery", 0)
	if call.Err != nil {
		return fmt.Errorf("stopping discovery: %w", call.Err)
	}
	r.logDebug("discovery stop requested", "adapter", r.adapter)
	return nil
}

// OnScanStart registers the scan-started callback.
func (r *Radio) OnScanStart(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = fn
}

// OnScanStop registers the scan-stopped callback.
func (r *Radio) OnScanStop(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStop = fn
}

// SetDebug toggles logging of every advertisement.
func (r *Radio) SetDebug(debug bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = debug
}

func (r *Radio) connection() (*dbus.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, ErrNotOpen
	}
	return r.conn, nil
}

// loadManagedObjects seeds the device table so property changes on
// devices BlueZ already knows can be attributed.
func (r *Radio) loadManagedObjects(ctx context.Context, conn *dbus.Conn) error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(bluezBus, "/").CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if err := call.Store(&objects); err != nil {
		return fmt.Errorf("listing managed objects: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for path, ifaces := range objects {
		props, ok := ifaces[bluezDevice1]
		if !ok || !r.ownsDevice(path) {
			continue
		}
		adv := r.device(path)
		mergeProperties(adv, props)
	}
	return nil
}

func (r *Radio) logDebug(msg string, args ...any) {
	r.mu.Lock()
	debug := r.debug
	r.mu.Unlock()
	if debug {
		r.logger.Debug(msg, args...)
	}
}

// dbusErrorName returns the D-Bus error name carried by err, if any.
func dbusErrorName(err error) string {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}
