package model

import (
	"errors"
	"time"
)

// DateLayout is the wire format for calendar dates.  Check-in and
// check-out dates travel as plain YYYY-MM-DD strings and are stored
// at UTC midnight with no time component.
const DateLayout = "2006-01-02"

// DateRange represents a half-open interval of nights: the check-in
// date is included, the check-out date is excluded.  A guest staying
// from 2025-06-01 to 2025-06-03 occupies the nights of the 1st and
// the 2nd and is gone on the 3rd.
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`  // first booked night (inclusive)
	CheckOut time.Time `json:"check_out"` // morning of departure (exclusive)
}

// ErrInvalidDateRange is returned when the check-out date does not
// fall strictly after the check-in date.
var ErrInvalidDateRange = errors.New("check_out must be after check_in")

// ParseDateRange builds a DateRange from two YYYY-MM-DD strings.  Both
// dates are normalised to UTC midnight.  It validates ordering but not
// whether the range lies in the future; callers enforce that where it
// matters.
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := time.ParseInLocation(DateLayout, checkIn, time.UTC)
	if err != nil {
		return DateRange{}, err
	}
	out, err := time.ParseInLocation(DateLayout, checkOut, time.UTC)
	if err != nil {
		return DateRange{}, err
	}
	dr := DateRange{CheckIn: in, CheckOut: out}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Validate reports whether the range is well formed: both endpoints set
// and check-out strictly after check-in.
func (d DateRange) Validate() error {
	if d.CheckIn.IsZero() || d.CheckOut.IsZero() || !d.CheckOut.After(d.CheckIn) {
		return ErrInvalidDateRange
	}
	return nil
}

// Overlaps reports whether two ranges share at least one night.  Two
// ranges overlap iff a.start < b.end && a.end > b.start; back-to-back
// stays (one guest checks out the morning another checks in) do not
// overlap.
func (d DateRange) Overlaps(o DateRange) bool {
	return d.CheckIn.Before(o.CheckOut) && d.CheckOut.After(o.CheckIn)
}

// Equal reports whether both ranges cover exactly the same nights.
func (d DateRange) Equal(o DateRange) bool {
	return d.CheckIn.Equal(o.CheckIn) && d.CheckOut.Equal(o.CheckOut)
}

// Nights returns the number of nights covered by the range.
func (d DateRange) Nights() int {
	return int(d.CheckOut.Sub(d.CheckIn).Hours() / 24)
}

// Contains reports whether a single calendar date falls within the
// range, i.e. day >= check_in && day < check_out.
func (d DateRange) Contains(day time.Time) bool {
	return !day.Before(d.CheckIn) && day.Before(d.CheckOut)
}
