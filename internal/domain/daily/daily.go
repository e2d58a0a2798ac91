// Package daily holds the per-day usage bookkeeping and the allowance arithmetic.
package daily

import "time"

// MillisPerMinute converts usage-source millis to whole minutes.
const MillisPerMinute = int64(60 * 1000)

// State is the persisted daily bookkeeping (immutable value object).
type State struct {
	addedMinutes      int
	lastResetBoundary time.Time
	usageBaseline     int
}

// New creates a State. Negative counters are clamped to zero.
func New(addedMinutes int, lastResetBoundary time.Time, usageBaseline int) State {
	return State{
		addedMinutes:      max(0, addedMinutes),
		lastResetBoundary: lastResetBoundary,
		usageBaseline:     max(0, usageBaseline),
	}
}

// AddedMinutes returns grant minutes redeemed since the last rollover.
func (s State) AddedMinutes() int { return s.addedMinutes }

// LastResetBoundary returns the day start recorded at the last rollover.
func (s State) LastResetBoundary() time.Time { return s.lastResetBoundary }

// UsageBaseline returns the raw used minutes captured by the last unlock.
func (s State) UsageBaseline() int { return s.usageBaseline }

// NeedsRollover reports whether the state belongs to a day before todayStart.
func (s State) NeedsRollover(todayStart time.Time) bool {
	return s.lastResetBoundary.Before(todayStart)
}

// RolledOver returns a fresh state anchored at todayStart.
func (s State) RolledOver(todayStart time.Time) State {
	return State{lastResetBoundary: todayStart}
}

// WithAdded returns a copy with minutes added to the grant counter.
func (s State) WithAdded(minutes int) State {
	s.addedMinutes = max(0, s.addedMinutes+minutes)
	return s
}

// Unlocked returns a copy with no grant minutes and the baseline moved to rawUsed.
func (s State) Unlocked(rawUsed int) State {
	s.addedMinutes = 0
	s.usageBaseline = max(0, rawUsed)
	return s
}

// EffectiveUsed subtracts the unlock baseline from the raw usage.
func (s State) EffectiveUsed(rawUsed int) int {
	return max(0, rawUsed-s.usageBaseline)
}

// MillisToMinutes truncates toward zero.
func MillisToMinutes(ms int64) int {
	return int(ms / MillisPerMinute)
}

// Remaining is max(0, limit + added - used).
func Remaining(limit, added, used int) int {
	return max(0, limit+added-used)
}

// UncoveredDebt is the usage over the limit that earlier grants do not cover yet.
func UncoveredDebt(limit, added, used int) int {
	extra := max(0, used-limit)
	return max(0, extra-added)
}

// Compensated returns how many minutes a grant must add so that it shows up in full
// as remaining time even when usage already overran the limit.
func Compensated(granted, limit, added, used int) int {
	return granted + UncoveredDebt(limit, added, used)
}
