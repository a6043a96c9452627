// Package guard watches the backing stores and gates automation on their
// health.
//
// A periodic probe checks the document store and the shared realtime
// store with a bounded timeout, so a stalled store counts as down. The
// first failed probe freezes automation: in-memory building modes are
// cleared, lock flags are withdrawn, and rule or remote actuation is
// suppressed until recovery. Forced internal paths stay available.
//
// Recovery is always a full resync. The topology is reloaded and every
// building's persisted automation intent is re-applied before execution
// resumes. The guard never patches state incrementally from the failure
// point.
package guard
