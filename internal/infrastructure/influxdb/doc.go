// Package influxdb records Govee sensor readings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Every accepted sensor update becomes one point in the "govee_reading"
// measurement, tagged by accessory and carrying one field per value
// (temperature, humidity, battery) plus the signal strength.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading(influxdb.ReadingPoint{
//	    AccessoryID: id,
//	    Name:        "Govee H5075 A1B2",
//	    Values:      map[string]float64{"temperature": 21.4},
//	    At:          time.Now(),
//	})
//
// Writes are asynchronous; failures are delivered to the callback set
// with SetOnError.
package influxdb
