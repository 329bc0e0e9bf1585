package clock

import "time"

// Clock supplies server-authoritative write timestamps. Mutations stamp
// documents with Now(); ISO() is the canonical string form stored inside
// JSONB documents so that all persisted timestamps share one representation.
type Clock interface {
	Now() time.Time
	ISO() string
}

type systemClock struct{}

// System returns a Clock backed by the host's UTC time.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) ISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Fixed returns a Clock frozen at the provided instant, used in tests.
func Fixed(at time.Time) Clock {
	return fixedClock{at: at.UTC()}
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

func (c fixedClock) ISO() string {
	return c.at.Format(time.RFC3339)
}
