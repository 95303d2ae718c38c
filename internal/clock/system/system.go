// Package system provides a real clock implementation.
package system

import "time"

// Clock implements jobs.Clock using time.Now in a fixed location. Posted-on
// dates and schedule hours are read in that location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock for loc. A nil loc uses UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c Clock) Now() time.Time {
	if c.loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
