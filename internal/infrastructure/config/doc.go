// Package config loads and validates the core's YAML configuration.
//
// Resolution order is defaults, then the YAML file, then SISEOA_*
// environment variables; Load returns the merged, validated result.
// Secrets (broker password, InfluxDB token) belong in environment
// variables, not in the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// The automation section carries the engine knobs: event history bounds,
// mining thresholds, executor tick, accrual cadence, and the connectivity
// probe. Validation rejects values the engine cannot run with.
package config
