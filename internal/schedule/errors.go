package schedule

import "errors"

// ErrConfiguration marks a schedule-evaluation failure that is fatal
// for the whole cycle: an unknown time zone or a missing mandatory
// field. Callers should use errors.Is/As against this sentinel rather
// than string-matching.
var ErrConfiguration = errors.New("schedule: configuration error")
