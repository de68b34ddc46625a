package model

import "fmt"

// CompetencyFilter scopes analyses to an optional year and an optional month.
// The zero value covers the whole history. It is comparable so it can be part
// of a map key.
type CompetencyFilter struct {
	year     int
	month    int
	hasYear  bool
	hasMonth bool
}

// NewFilter builds a filter from optional fields. A nil pointer leaves the
// field absent. Month is not range checked here; the filter manager does that.
func NewFilter(year, month *int) CompetencyFilter {
	var f CompetencyFilter
	if year != nil {
		f = f.WithYear(*year)
	}
	if month != nil {
		f = f.WithMonth(*month)
	}
	return f
}

// Year returns the year and whether it is set.
func (f CompetencyFilter) Year() (int, bool) { return f.year, f.hasYear }

// Month returns the month and whether it is set.
func (f CompetencyFilter) Month() (int, bool) { return f.month, f.hasMonth }

// WithYear returns a copy with the year set.
func (f CompetencyFilter) WithYear(year int) CompetencyFilter {
	f.year, f.hasYear = year, true
	return f
}

// WithoutYear returns a copy with the year absent.
func (f CompetencyFilter) WithoutYear() CompetencyFilter {
	f.year, f.hasYear = 0, false
	return f
}

// WithMonth returns a copy with the month set.
func (f CompetencyFilter) WithMonth(month int) CompetencyFilter {
	f.month, f.hasMonth = month, true
	return f
}

// WithoutMonth returns a copy with the month absent.
func (f CompetencyFilter) WithoutMonth() CompetencyFilter {
	f.month, f.hasMonth = 0, false
	return f
}

// IsAllTime reports whether neither field is set.
func (f CompetencyFilter) IsAllTime() bool { return !f.hasYear && !f.hasMonth }

// YearPtr and MonthPtr expose the fields as nullable values for wire encoding.
func (f CompetencyFilter) YearPtr() *int {
	if !f.hasYear {
		return nil
	}
	y := f.year
	return &y
}

func (f CompetencyFilter) MonthPtr() *int {
	if !f.hasMonth {
		return nil
	}
	m := f.month
	return &m
}

func (f CompetencyFilter) String() string {
	y, m := "*", "*"
	if f.hasYear {
		y = fmt.Sprint(f.year)
	}
	if f.hasMonth {
		m = fmt.Sprintf("%02d", f.month)
	}
	return y + "-" + m
}
