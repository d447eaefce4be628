package db

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes the reservation core turns into typed conflicts.
const (
	CodeUniqueViolation    = "23505"
	CodeCheckViolation     = "23514"
	CodeExclusionViolation = "23P01"
	CodeLockNotAvailable   = "55P03"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsLockTimeout reports a bounded lock wait that expired; the caller may
// retry the whole request.
func IsLockTimeout(err error) bool {
	return pqCode(err) == CodeLockNotAvailable
}

// IsUniqueViolation covers the one-live-booking-per-slot backstop.
func IsUniqueViolation(err error) bool {
	return pqCode(err) == CodeUniqueViolation
}

// IsExclusionViolation covers the trainer time-range backstop: two unlocked
// conflict checks can race, the constraint turns the loser into an explicit
// conflict instead of silent double-booking.
func IsExclusionViolation(err error) bool {
	return pqCode(err) == CodeExclusionViolation
}

// IsCheckViolation covers the capacity bound constraints.
func IsCheckViolation(err error) bool {
	return pqCode(err) == CodeCheckViolation
}
