package auth

import "time"

// Policy maps the number of consecutive failures to a cooldown.
type Policy interface {
	Cooldown(fails int) time.Duration
}

// EscalatingPolicy locks after every failure: 5s for the first three,
// 15s for the 4th and 5th, a minute from the 6th on.
type EscalatingPolicy struct{}

func (EscalatingPolicy) Cooldown(fails int) time.Duration {
	switch {
	case fails >= 6:
		return 60 * time.Second
	case fails >= 4:
		return 15 * time.Second
	default:
		return 5 * time.Second
	}
}

// FixedPolicy locks for Window once Strikes failures have piled up.
type FixedPolicy struct {
	Strikes int
	Window  time.Duration
}

// NewFixedPolicy returns the three strikes, thirty seconds variant.
func NewFixedPolicy() FixedPolicy {
	return FixedPolicy{Strikes: 3, Window: 30 * time.Second}
}

func (p FixedPolicy) Cooldown(fails int) time.Duration {
	if fails < p.Strikes {
		return 0
	}
	return p.Window
}
