package security

import "time"

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 300 * time.Second
)

type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

type LockoutDecision struct {
	Locked    bool
	Remaining time.Duration
	// Reset asks the caller to zero the stored counters before continuing.
	Reset bool
}

func NewLockoutPolicy(threshold int, window time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return LockoutPolicy{Threshold: threshold, Window: window}
}

func (p LockoutPolicy) Evaluate(failedAttempts int, lastFailedAt *time.Time, now time.Time) LockoutDecision {
	if failedAttempts < p.Threshold {
		return LockoutDecision{}
	}
	if lastFailedAt == nil {
		return LockoutDecision{Reset: true}
	}
	elapsed := now.Sub(*lastFailedAt)
	if elapsed >= p.Window {
		return LockoutDecision{Reset: true}
	}
	return LockoutDecision{Locked: true, Remaining: p.Window - elapsed}
}

// RemainingAttempts is the number of failures left before the account locks.
func (p LockoutPolicy) RemainingAttempts(failedAttempts int) int {
	left := p.Threshold - failedAttempts
	if left < 0 {
		return 0
	}
	return left
}
