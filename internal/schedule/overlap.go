// Package schedule holds the pure time-slot rules shared by the validator
// and the store: interval overlap and date/time normalisation.
package schedule

import (
	"errors"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time")
)

// Overlaps reports whether the half-open intervals [start1,end1) and
// [start2,end2) intersect.  Arguments must already be normalised so that
// string order matches time order.  Touching intervals do not overlap.
func Overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && end1 > start2
}

// NormalizeDate parses a calendar date written as YYYY-MM-DD (month and
// day may omit the leading zero) and returns it zero-padded.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", ErrInvalidDate
}

// NormalizeTime parses H:MM, HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, "15:04", "15:4:5", "15:4"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", ErrInvalidTime
}

// Today returns the local calendar date of now in DateLayout.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// MonthRange returns the first and last dates of the given month.
func MonthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

// PreviousMonth returns the year and month preceding now's month.
func PreviousMonth(now time.Time) (int, time.Month) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}
