// Package pattern derives weekly schedules from a device's switch history.
//
// The miner reads the device's bounded event log over a lookback window,
// partitions it into usage sessions by a gap threshold, and turns valid
// sessions (at least one ON and one OFF) into per-weekday stages. The day
// with the most raw events acts as a template for days that saw activity
// but produced no valid session of their own.
//
//	events ──sort──► sessions ──group by weekday──► stages ──► rule
//
// A generated rule always starts disabled so that regeneration never
// silently changes behaviour. Fewer than the minimum qualifying events is
// an insufficient-data outcome, not a failure.
package pattern
