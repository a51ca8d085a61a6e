package redmine

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is Redmine's date-only wire format (spent_on, due_date).
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component. It marshals to the
// Redmine "YYYY-MM-DD" form, which also sorts lexicographically, so date
// index columns can be compared as plain strings.
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today is DateOf(now).
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate reads the YYYY-MM-DD wire form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("redmine: parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// AddDays returns the date n days later (negative n goes back).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
