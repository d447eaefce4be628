package policy

import (
	"math"
	"time"
)

// CancelOutcome is the result of the class-cancellation tier lookup.
type CancelOutcome string

const (
	FreeCancel       CancelOutcome = "free_cancel"
	PenaltyCancel    CancelOutcome = "penalty_cancel"
	CancelImpossible CancelOutcome = "impossible"
)

// SessionType mirrors the ledger's session kinds without importing it,
// keeping this package pure.
type SessionType string

const (
	SessionFreeTrial SessionType = "free_trial"
	SessionPaid      SessionType = "paid"
)

// Rules carries every time-policy knob. All decisions are pure functions of
// the rule set and explicit instants; nothing here reads the clock.
type Rules struct {
	FreeCancelBefore  time.Duration
	CancelCutoff      time.Duration
	GraceWindow       time.Duration
	TrialLeadTime     time.Duration
	PaidLeadTime      time.Duration
	GroupLeadTime     time.Duration
	CheckInOpenBefore time.Duration
	RefundWindowDays  int
}

func DefaultRules() Rules {
	return Rules{
		FreeCancelBefore:  24 * time.Hour,
		CancelCutoff:      time.Hour,
		GraceWindow:       10 * time.Minute,
		TrialLeadTime:     3 * time.Hour,
		PaidLeadTime:      time.Hour,
		GroupLeadTime:     time.Hour,
		CheckInOpenBefore: 15 * time.Minute,
		RefundWindowDays:  14,
	}
}

// ClassCancellation maps "now" against the booking creation time and the
// class start to one of the three outcomes. The grace window since booking
// creation is checked first and is sufficient on its own; after that the
// tiers on time-to-start apply. Each tier is independently sufficient.
func (r Rules) ClassCancellation(now, bookedAt, classStart time.Time) CancelOutcome {
	if now.Sub(bookedAt) < r.GraceWindow {
		return FreeCancel
	}
	untilStart := classStart.Sub(now)
	switch {
	case untilStart >= r.FreeCancelBefore:
		return FreeCancel
	case untilStart >= r.CancelCutoff:
		return PenaltyCancel
	default:
		return CancelImpossible
	}
}

// BookingLeadTime returns the minimum gap required between booking time and
// class start. Group classes use one shared deadline; 1:1 sessions depend on
// whether the consumed session is a free trial or paid.
func (r Rules) BookingLeadTime(group bool, st SessionType) time.Duration {
	if group {
		return r.GroupLeadTime
	}
	if st == SessionFreeTrial {
		return r.TrialLeadTime
	}
	return r.PaidLeadTime
}

// CheckInOpen reports whether check-in is currently allowed for a class
// running [classStart, classEnd). The window opens CheckInOpenBefore the
// start and closes at the class end.
func (r Rules) CheckInOpen(now, classStart, classEnd time.Time) bool {
	opens := classStart.Add(-r.CheckInOpenBefore)
	return !now.Before(opens) && now.Before(classEnd)
}

// MembershipRefundFraction prorates a time-based plan refund. Any partial
// day since the plan start counts as a full used day, and the first instant
// at or after the start already consumes one day. Past the refund window the
// fraction is zero; the request itself still succeeds.
func (r Rules) MembershipRefundFraction(now, planStart time.Time) float64 {
	if now.Before(planStart) {
		return 1.0
	}
	window := time.Duration(r.RefundWindowDays) * 24 * time.Hour
	elapsed := now.Sub(planStart)
	if elapsed >= window {
		return 0.0
	}
	usedDays := int(math.Ceil(elapsed.Hours() / 24))
	if usedDays < 1 {
		usedDays = 1
	}
	if usedDays > r.RefundWindowDays {
		usedDays = r.RefundWindowDays
	}
	return float64(r.RefundWindowDays-usedDays) / float64(r.RefundWindowDays)
}

// SessionPackRefundFraction is binary: any consumed session forfeits the
// refund entirely.
func SessionPackRefundFraction(sessionsUsed int) float64 {
	if sessionsUsed == 0 {
		return 1.0
	}
	return 0.0
}
