package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DateLayout is the canonical wire form of a birth date.
	DateLayout = "02.01.2006"
	// parseLayout also accepts non-padded day and month.
	parseLayout = "2.1.2006"
)

// Date is a calendar date with no time-of-day or zone. The zero value is
// 01.01.0001.
type Date struct {
	t time.Time
}

// NewDate builds a Date. Out-of-range values normalise the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// minYear is the first year PostgreSQL DATE accepts.
const minYear = 1

// ParseDate parses dd.mm.yyyy. Impossible dates such as 31.02.1999 and year
// 0000 fail.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(parseLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if t.Year() < minYear {
		return Date{}, fmt.Errorf("parse date %q: year out of range", s)
	}
	return Date{t: t}, nil
}

func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// AgeAt returns the number of full years between d and today.
func (d Date) AgeAt(today Date) int {
	age := today.Year() - d.Year()
	if today.Month() < d.Month() || (today.Month() == d.Month() && today.Day() < d.Day()) {
		age--
	}
	return age
}

func (d Date) String() string {
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
