package influxdb

import "errors"

var (
	// ErrDisabled means the influxdb section of config.yaml is switched
	// off. Callers treat this as "no telemetry", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected means the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")
)
