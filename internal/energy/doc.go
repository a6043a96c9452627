// Package energy accumulates per-device consumption while devices run.
//
// A device that turns ON starts a run. While the run lasts, the accruer
// periodically converts elapsed time against the device's rated wattage into
// kWh slices and adds them to the device's daily total, so a crash loses at
// most one flush interval of energy. Turning OFF (or the controller going
// unreachable) flushes the remainder and ends the run.
//
// Slices are attributed to the calendar day they are flushed on.
package energy
