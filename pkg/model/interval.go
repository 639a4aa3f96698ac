package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is a half-open time range [Start, End). The half-open semantics
// make back-to-back reservations legal: an interval ending at 11:00 never
// conflicts with one starting at 11:00.
type Interval struct {
	Start time.Time `json:"start_time" bson:"start_time" validate:"required"`
	End   time.Time `json:"end_time" bson:"end_time" validate:"required"`
}

// NewInterval builds a validated interval. Zero-length and inverted ranges
// are rejected here so the conflict rule never sees them.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps is the conflict rule: A.start < B.end && B.start < A.end.
// Every conflict decision in the codebase goes through this predicate.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
