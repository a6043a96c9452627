// Package influxdb is the optional time-series sink for energy telemetry.
//
// It wraps influxdb-client-go v2's non-blocking batched write API with the
// three measurements the core emits: incremental accrual slices while a
// device runs, switch events tagged by origin, and per-day consumption
// totals. When the influxdb config section is disabled, Connect returns
// ErrDisabled and the rest of the core simply carries a nil telemetry
// interface.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    ...
//	}
//	defer client.Close()
//	client.WriteEnergyAccrual("ac-living-01", "home-01", 900, 0.045)
//
// Writes never block the caller; batch failures arrive on the SetOnError
// callback.
package influxdb
