package bluez

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// listen processes BlueZ signals until stopCh is closed.
func (r *Radio) listen(sigCh <-chan *dbus.Signal, stopCh <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			r.handleSignal(sig)
		}
	}
}

// handleSignal dispatches one signal. Callbacks run without r.mu held.
func (r *Radio) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}
	switch sig.Name {
	case dbusObjectManager + ".InterfacesAdded":
		r.handleInterfacesAdded(sig)
	case dbusObjectManager + ".InterfacesRemoved":
		r.handleInterfacesRemoved(sig)
	case dbusProperties + ".PropertiesChanged":
		r.handlePropertiesChanged(sig)
	}
}

func (r *Radio) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	props, ok := ifaces[bluezDevice1]
	if !ok {
		return
	}
	r.updateDevice(path, props)
}

func (r *Radio) handleInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].([]string)
	if !ok {
		return
	}
	for _, iface := range ifaces {
		if iface == bluezDevice1 {
			r.mu.Lock()
			delete(r.devices, path)
			r.mu.Unlock()
			return
		}
	}
}

func (r *Radio) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch iface {
	case bluezAdapter1:
		if sig.Path != r.adapterPath {
			return
		}
		if v, ok := changed["Discovering"]; ok {
			if discovering, ok := v.Value().(bool); ok {
				r.handleDiscovering(discovering)
			}
		}
	case bluezDevice1:
		r.updateDevice(sig.Path, changed)
	}
}

func (r *Radio) handleDiscovering(discovering bool) {
	r.mu.Lock()
	fn := r.onStop
	if discovering {
		fn = r.onStart
	}
	r.mu.Unlock()

	r.logDebug("adapter discovering changed", "adapter", r.adapter, "discovering", discovering)
	if fn != nil {
		fn()
	}
}

// updateDevice merges props into the device table and emits a reading
// when the advertisement content changed.
func (r *Radio) updateDevice(path dbus.ObjectPath, props map[string]dbus.Variant) {
	r.mu.Lock()
	if !r.ownsDevice(path) {
		r.mu.Unlock()
		return
	}
	adv := r.device(path)
	advertised := mergeProperties(adv, props)
	adv.ReceivedAt = r.now()
	snapshot := adv.copy()
	onReading, debug := r.onReading, r.debug
	r.mu.Unlock()

	if !advertised || onReading == nil {
		return
	}
	rd, ok := r.decoder.Decode(snapshot)
	if !ok {
		return
	}
	if debug {
		r.logger.Debug("advertisement", "address", rd.Address, "name", snapshot.Name, "rssi", rd.RSSI)
	}
	onReading(rd)
}

// ownsDevice reports whether path is a device under this adapter.
func (r *Radio) ownsDevice(path dbus.ObjectPath) bool {
	return strings.HasPrefix(string(path), string(r.adapterPath)+"/dev_")
}

// device returns the table entry for path, creating it. Caller holds r.mu.
func (r *Radio) device(path dbus.ObjectPath) *Advertisement {
	adv, ok := r.devices[path]
	if !ok {
		adv = &Advertisement{}
		r.devices[path] = adv
	}
	return adv
}

// mergeProperties applies Device1 properties to adv. It reports whether
// any advertised content (RSSI, name, manufacturer or service data) was
// present.
func mergeProperties(adv *Advertisement, props map[string]dbus.Variant) bool {
	advertised := false
	for key, v := range props {
		switch key {
		case "Address":
			if s, ok := v.Value().(string); ok {
				adv.Address = s
			}
		case "Name":
			if s, ok := v.Value().(string); ok {
				adv.Name = s
				advertised = true
			}
		case "Alias":
			if s, ok := v.Value().(string); ok && adv.Name == "" {
				adv.Name = s
			}
		case "RSSI":
			if n, ok := v.Value().(int16); ok {
				adv.RSSI = n
				advertised = true
			}
		case "ManufacturerData":
			if m, ok := v.Value().(map[uint16]dbus.Variant); ok {
				adv.ManufacturerData = make(map[uint16][]byte, len(m))
				for id, data := range m {
					if b, ok := data.Value().([]byte); ok {
						adv.ManufacturerData[id] = b
					}
				}
				advertised = true
			}
		case "ServiceData":
			if m, ok := v.Value().(map[string]dbus.Variant); ok {
				adv.ServiceData = make(map[string][]byte, len(m))
				for id, data := range m {
					if b, ok := data.Value().([]byte); ok {
						adv.ServiceData[id] = b
					}
				}
				advertised = true
			}
		}
	}
	return advertised
}

func (a *Advertisement) copy() Advertisement {
	out := *a
	if a.ManufacturerData != nil {
		out.ManufacturerData = make(map[uint16][]byte, len(a.ManufacturerData))
		for k, v := range a.ManufacturerData {
			out.ManufacturerData[k] = append([]byte(nil), v...)
		}
	}
	if a.ServiceData != nil {
		out.ServiceData = make(map[string][]byte, len(a.ServiceData))
		for k, v := range a.ServiceData {
			out.ServiceData[k] = append([]byte(nil), v...)
		}
	}
	return out
}
