package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEnergyAccrual records an incremental energy slice for a running device.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Device identifier
//   - buildingID: Building the device currently belongs to
//   - watt: Rated draw in watts
//   - kwh: Energy consumed in this accrual slice
//
// Example:
//
//	client.WriteEnergyAccrual("ac-living-01", "home-01", 900, 0.045)
func (c *Client) WriteEnergyAccrual(deviceID, buildingID string, watt, kwh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy",
		map[string]string{
			"device_id":   deviceID,
			"building_id": buildingID,
		},
		map[string]interface{}{
			"watt": watt,
			"kwh":  kwh,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSwitchEvent records a device turning ON or OFF, tagged by origin
// (remote intent, schedule rule, mode transition, local controller).
//
// Parameters:
//   - deviceID: Device identifier
//   - action: "ON" or "OFF"
//   - source: What initiated the switch
func (c *Client) WriteSwitchEvent(deviceID, action, source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"switch_events",
		map[string]string{
			"device_id": deviceID,
			"action":    action,
			"source":    source,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDailyTotal records the running kWh total for a device on a calendar day.
//
// Parameters:
//   - deviceID: Device identifier
//   - day: Calendar day in YYYY-MM-DD form
//   - kwh: Accumulated consumption for that day
func (c *Client) WriteDailyTotal(deviceID, day string, kwh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"daily_usage",
		map[string]string{
			"device_id": deviceID,
			"day":       day,
		},
		map[string]interface{}{
			"kwh": kwh,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
