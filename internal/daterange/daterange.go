// Package daterange splits inclusive calendar date ranges into
// month-bounded chunks and provides the weekly bucketing rule used
// across scene selection and artifact organization.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidMaxMonths is returned when a chunk size is not positive.
	ErrInvalidMaxMonths = errors.New("max months must be positive")

	// ErrInvertedRange is returned when the end date precedes the start date.
	ErrInvertedRange = errors.New("end date precedes start date")
)

// Range is an inclusive span of calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

// String renders the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r Range) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Subdivide walks forward from start, emitting chunks that each span at
// most maxMonths calendar months. A chunk ends one day before
// start+maxMonths months, clipped to the overall end. The chunks
// partition [start, end] with no gaps or overlaps; start == end yields
// a single one-day chunk.
func Subdivide(start, end time.Time, maxMonths int) ([]Range, error) {
	if maxMonths <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxMonths, maxMonths)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvertedRange,
			start.Format(DateLayout), end.Format(DateLayout))
	}

	var chunks []Range
	cur := start
	for {
		chunkEnd := cur.AddDate(0, maxMonths, -1)
		if !chunkEnd.Before(end) {
			chunks = append(chunks, Range{Start: cur, End: end})
			return chunks, nil
		}
		chunks = append(chunks, Range{Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
}

// WeekStart returns the preceding Sunday of t, or t itself when t is a
// Sunday.
func WeekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}
