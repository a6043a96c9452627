package pattern

import "errors"

// ErrInsufficientData is returned when a device's history holds too few
// qualifying events to derive a meaningful schedule. Callers treat it as
// a no-op outcome, not a failure.
var ErrInsufficientData = errors.New("pattern: insufficient event data")
