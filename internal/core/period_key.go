package core

import (
	"fmt"
	"strconv"
	"strings"
)

// PeriodKey is a parsed "YYYY-MM" period identifier.
type PeriodKey struct {
	Year  int
	Month int
}

// ParsePeriodKey splits s on "-" into a year and a month. The month range is
// not checked so that Next behaves the same on out-of-range input.
func ParsePeriodKey(s string) (PeriodKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return PeriodKey{}, fmt.Errorf("parse period key %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return PeriodKey{}, fmt.Errorf("parse period key %q: year: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return PeriodKey{}, fmt.Errorf("parse period key %q: month: %w", s, err)
	}
	return PeriodKey{Year: year, Month: month}, nil
}

// Next advances one month, rolling into January of the following year.
func (k PeriodKey) Next() PeriodKey {
	k.Month++
	if k.Month > 12 {
		k.Month = 1
		k.Year++
	}
	return k
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%d-%02d", k.Year, k.Month)
}
