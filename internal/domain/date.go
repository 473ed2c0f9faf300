package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Date is a calendar day, stored as days since the Unix epoch. The
// schedule index is keyed by (station, Date).
type Date int

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid date %q", s)
	}
	return Date(t.Unix() / 86400), nil
}

// DateOf truncates a time to its UTC calendar day.
func DateOf(t time.Time) Date {
	return Date(t.Unix() / 86400)
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// Add returns the date n days later.
func (d Date) Add(n int) Date {
	return d + Date(n)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}
