// Package dates implements the ordered parse cascade for clinical date
// columns and the canonical ISO rendering used by date normalization.
//
// The cascade accepts, in order: ISO calendar date, ISO date with time,
// slash-delimited dates, compact 8-digit dates, day-month-year with a
// textual month, and partial year or year-month values. The first matching
// format wins. A value that matches no format is reported by the caller as
// a warning finding, never an error.
package dates

import "time"

// Precision records how much of the calendar a parsed value pinned down.
// Partial dates are first-class: "2024" and "2024-03" are valid inputs
// that compare at their own granularity.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
	PrecisionTime
)

func (p Precision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	case PrecisionTime:
		return "time"
	default:
		return "none"
	}
}

// Parsed is one successfully parsed date value.
type Parsed struct {
	Time      time.Time
	Precision Precision
}

// Canonical renders the value in ISO form at its own precision. Formatting
// uses the parsed wall-clock time, so the calendar date is never shifted.
func (p Parsed) Canonical() string {
	switch p.Precision {
	case PrecisionYear:
		return p.Time.Format("2006")
	case PrecisionMonth:
		return p.Time.Format("2006-01")
	case PrecisionDay:
		return p.Time.Format("2006-01-02")
	case PrecisionTime:
		return p.Time.Format("2006-01-02T15:04:05")
	default:
		return ""
	}
}

// truncate reduces the value to the given precision in UTC so that values
// parsed from different layouts compare consistently.
func (p Parsed) truncate(prec Precision) time.Time {
	y, m, d := p.Time.Date()
	switch prec {
	case PrecisionYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	case PrecisionMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case PrecisionDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	default:
		hh, mm, ss := p.Time.Clock()
		return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
	}
}

// Compare orders two parsed values at the coarser of their precisions.
// It returns -1 when a precedes b, 1 when a follows b, and 0 when they
// are indistinguishable at that precision. "2024" neither precedes nor
// follows "2024-06-01".
func Compare(a, b Parsed) int {
	prec := a.Precision
	if b.Precision < prec {
		prec = b.Precision
	}

	av, bv := a.truncate(prec), b.truncate(prec)
	switch {
	case av.Before(bv):
		return -1
	case av.After(bv):
		return 1
	default:
		return 0
	}
}
