// Package timerange models a half-open [start, end) span of local calendar days.
package timerange

import (
	"fmt"
	"strings"
	"time"
)

// Local is the archive calendar: a fixed UTC+9 offset without DST.
var Local = time.FixedZone("JST", 9*60*60)

const (
	dateLayout = "2006-01-02"
	keyLayout  = "20060102"
)

// InvalidRangeError reports a range whose end is not after its start.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s is not after start %s",
		e.End.Format(dateLayout), e.Start.Format(dateLayout))
}

// Range is a validated span of whole local days. The zero value is not valid.
type Range struct {
	start time.Time
	end   time.Time
}

// New builds a range from local calendar dates. Both inputs are truncated to
// local midnight; a zero end defaults to start plus one day.
func New(start, end time.Time) (Range, error) {
	s := midnight(start)
	var e time.Time
	if end.IsZero() {
		e = s.AddDate(0, 0, 1)
	} else {
		e = midnight(end)
	}
	if !e.After(s) {
		return Range{}, &InvalidRangeError{Start: s, End: e}
	}
	return Range{start: s, end: e}, nil
}

// Parse reads YYYY-MM-DD dates in the local calendar. An empty start means
// yesterday relative to now; an empty end means start plus one day.
func Parse(start, end string, now time.Time) (Range, error) {
	var s time.Time
	if strings.TrimSpace(start) == "" {
		s = Yesterday(now)
	} else {
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(start), Local)
		if err != nil {
			return Range{}, fmt.Errorf("parse start date %q: %w", start, err)
		}
		s = t
	}
	var e time.Time
	if strings.TrimSpace(end) != "" {
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(end), Local)
		if err != nil {
			return Range{}, fmt.Errorf("parse end date %q: %w", end, err)
		}
		e = t
	}
	return New(s, e)
}

// Yesterday returns local midnight of the day before now.
func Yesterday(now time.Time) time.Time {
	return midnight(now).AddDate(0, 0, -1)
}

// Start is local midnight of the first day.
func (r Range) Start() time.Time { return r.start }

// End is local midnight of the exclusive last day.
func (r Range) End() time.Time { return r.end }

// UTC returns the range as an absolute half-open instant interval.
func (r Range) UTC() (time.Time, time.Time) {
	return r.start.UTC(), r.end.UTC()
}

// Key is the canonical cache key, YYYYMMDD_YYYYMMDD.
func (r Range) Key() string {
	return r.start.Format(keyLayout) + "_" + r.end.Format(keyLayout)
}

// Days lists local midnight of each day in the range.
func (r Range) Days() []time.Time {
	var out []time.Time
	for d := r.start; d.Before(r.end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Contains reports whether the instant falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.start) && t.Before(r.end)
}

func (r Range) String() string {
	return r.start.Format(dateLayout) + " -> " + r.end.Format(dateLayout) + " (UTC+9)"
}

// DateOf returns the local calendar date of an instant as YYYY-MM-DD.
func DateOf(t time.Time) string {
	return t.In(Local).Format(dateLayout)
}

func midnight(t time.Time) time.Time {
	lt := t.In(Local)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, Local)
}
