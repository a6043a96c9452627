// Package rules stores per-device automation schedules and executes them.
//
// A device has at most one rule, in one of two shapes: a legacy single
// window (start, end, active days) or a multi-stage weekly schedule (per
// day name, an ordered list of start/end stages). The shape is an explicit
// discriminant on the Rule; consumers dispatch on Kind and never sniff the
// schedule structure.
//
// The Executor evaluates enabled rules on a fixed tick. A stage boundary
// fires only in the minute whose wall-clock time equals it exactly. A tick
// that lands late skips the boundary until its next weekly occurrence;
// there is no catch-up.
//
//	                 ┌──────────────┐
//	  tick ─────────►│   Executor   │
//	                 └──────┬───────┘
//	                        │ per device
//	            mode != none? locked? enabled?
//	                        │
//	                 ┌──────▼───────┐
//	                 │  stage match │ now == "HH:MM"
//	                 └──────┬───────┘
//	                        ▼
//	                  actuator.Switch
package rules
