// Package dumpdate discovers the most recent dump date of a language by
// scraping the dump server's directory listing.
package dumpdate

import (
	"fmt"
	"time"
)

const layout = "20060102"

// Date is a calendar date without a time component, written YYYYMMDD.
type Date struct {
	t time.Time
}

// Parse parses an 8-digit YYYYMMDD string. Anything that is not a valid
// calendar date is rejected.
func Parse(s string) (Date, error) {
	if len(s) != len(layout) {
		return Date{}, fmt.Errorf("invalid dump date %q: want YYYYMMDD", s)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid dump date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the date as YYYYMMDD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(layout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int { return d.t.Compare(o.t) }

// After reports whether d is later than o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Time returns the date as midnight UTC.
func (d Date) Time() time.Time { return d.t }

// Max returns the latest of dates. The boolean is false for an empty slice.
func Max(dates []Date) (Date, bool) {
	if len(dates) == 0 {
		return Date{}, false
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, true
}
