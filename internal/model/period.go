package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidPeriod = errors.New("invalid validity period")
	ErrInvalidRecord = errors.New("invalid record")
)

// OpenEndDate marks a membership with no known end. Real calendar dates never reach it.
var OpenEndDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// OpenEndStamp is the stamp stored with OpenEndDate, independent of the market timezone.
var OpenEndStamp = OpenEndDate.Unix()

const DefaultTimezone = "Asia/Shanghai"

// dateLayouts are tried in order; any time portion is discarded.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// Calendar converts vendor date spellings to dates and stamps in the market timezone.
// Dates are carried as UTC midnight so DATE columns round-trip the same day; stamps are
// epoch seconds of local midnight.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	return &Calendar{loc: loc}, nil
}

// CalendarIn wraps an already loaded location.
func CalendarIn(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

func (c *Calendar) Location() *time.Location { return c.loc }

// ParseDate accepts the layouts above, RFC3339 and epoch milliseconds.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidPeriod)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return c.Date(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return c.Date(t), nil
		}
	}
	if len(s) == 13 {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return c.Date(time.UnixMilli(ms)), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable date %q", ErrInvalidPeriod, s)
}

// Date truncates t to its calendar day in the market timezone, returned as UTC midnight.
func (c *Calendar) Date(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stamp returns epoch seconds of the local midnight starting day d (d as returned by Date).
func (c *Calendar) Stamp(d time.Time) int64 {
	if d.IsZero() {
		return 0
	}
	y, m, day := d.Date()
	if y == 9999 && m == time.December && day == 31 {
		return OpenEndStamp
	}
	return time.Date(y, m, day, 0, 0, 0, 0, c.loc).Unix()
}

// ParseStamp is ParseDate followed by Stamp.
func (c *Calendar) ParseStamp(s string) (time.Time, int64, error) {
	d, err := c.ParseDate(s)
	if err != nil {
		return time.Time{}, 0, err
	}
	return d, c.Stamp(d), nil
}
