package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementReading is the measurement every sensor reading is written to.
const MeasurementReading = "govee_reading"

// ReadingPoint is one sensor update destined for InfluxDB.
type ReadingPoint struct {
	AccessoryID string
	Name        string
	Model       string
	Values      map[string]float64
	RSSI        int16
	LowBattery  bool
	At          time.Time
}

// newReadingPoint converts a ReadingPoint into a line-protocol point.
// It returns nil when there is nothing to record.
func newReadingPoint(r ReadingPoint) *write.Point {
	if len(r.Values) == 0 {
		return nil
	}

	tags := map[string]string{"accessory_id": r.AccessoryID}
	if r.Name != "" {
		tags["name"] = r.Name
	}
	if r.Model != "" {
		tags["model"] = r.Model
	}

	fields := make(map[string]interface{}, len(r.Values)+2)
	for k, v := range r.Values {
		fields[k] = v
	}
	if r.RSSI != 0 {
		fields["rssi"] = int64(r.RSSI)
	}
	fields["low_battery"] = r.LowBattery

	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(MeasurementReading, tags, fields, at)
}

// WriteReading queues one sensor reading. Readings without values are dropped.
func (c *Client) WriteReading(r ReadingPoint) {
	if !c.IsConnected() {
		return
	}
	if p := newReadingPoint(r); p != nil {
		c.writeAPI.WritePoint(p)
	}
}
