package shared

import "time"

// Clock supplies the current business time. Core services never read the
// wall clock directly; they receive a Clock so tests stay deterministic.
type Clock interface {
	Now() time.Time
}

// ZoneClock reads the system clock converted to a fixed business timezone.
type ZoneClock struct {
	loc *time.Location
}

// NewZoneClock loads the named timezone (e.g. America/Mexico_City).
func NewZoneClock(name string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &ZoneClock{loc: loc}, nil
}

// Now returns the current time in the business timezone.
func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
