package interval

import (
	"time"

	"fitclass/internal/apperr"
)

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. A range ending exactly when another begins
// does not conflict, so back-to-back classes are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Validate rejects empty and inverted ranges. Callers run this before any
// overlap check; Overlaps itself stays total.
func Validate(start, end time.Time) error {
	if !start.Before(end) {
		return apperr.New(apperr.PolicyViolation, "start time must be before end time")
	}
	return nil
}
