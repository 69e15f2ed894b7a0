package asset

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - A (year, month) pair, the unit of depreciation posting
// =============================================================================

// Period identifies one accounting month. At most one ledger entry may
// exist per asset and period.
type Period struct {
	Year  int
	Month time.Month
}

const (
	minPeriodYear = 1900
	maxPeriodYear = 9999
)

// NewPeriod validates and builds a period.
func NewPeriod(year int, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, &ValidationError{Field: "month", Message: fmt.Sprintf("must be between 1 and 12, got %d", month)}
	}
	if year < minPeriodYear || year > maxPeriodYear {
		return Period{}, &ValidationError{Field: "year", Message: fmt.Sprintf("must be between %d and %d, got %d", minPeriodYear, maxPeriodYear, year)}
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustPeriod is NewPeriod for literals known to be valid.
func MustPeriod(year, month int) Period {
	p, err := NewPeriod(year, month)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, &ValidationError{Field: "period", Message: fmt.Sprintf("expected YYYY-MM, got %q", s)}
	}
	return NewPeriod(t.Year(), int(t.Month()))
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start is the first day of the period at 00:00 UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the period at 00:00 UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) Next() Period     { return PeriodOf(p.Start().AddDate(0, 1, 0)) }
func (p Period) Previous() Period { return PeriodOf(p.Start().AddDate(0, -1, 0)) }

func (p Period) Before(o Period) bool {
	return p.Year < o.Year || (p.Year == o.Year && p.Month < o.Month)
}

func (p Period) After(o Period) bool { return o.Before(p) }

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// StartsBefore reports whether the period's first day falls before t's
// calendar day. Depreciation for a period only begins once its first day is
// on or after the asset's depreciation start date.
func (p Period) StartsBefore(t time.Time) bool {
	return p.Start().Before(Day(t))
}

// Day truncates t to 00:00 UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
