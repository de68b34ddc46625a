// Package comparison derives period-versus-history metrics and labels for the
// Overview view.
package comparison

import (
	"fmt"
	"math"
	"strconv"

	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Locale selects label language.
type Locale string

const (
	PtBR Locale = "pt-BR"
	EN   Locale = "en"
)

var monthNames = map[Locale][12]string{
	PtBR: {"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
		"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro"},
	EN: {"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
}

// ParseLocale maps a configured locale to a Locale, pt-BR for anything unknown.
func ParseLocale(s string) Locale {
	if Locale(s) == EN {
		return EN
	}
	return PtBR
}

// MonthName returns the name of month 1..12. ok is false outside that range.
func MonthName(month int, loc Locale) (name string, ok bool) {
	if month < 1 || month > 12 {
		return "", false
	}
	names, found := monthNames[loc]
	if !found {
		names = monthNames[PtBR]
	}
	return names[month-1], true
}

// PeriodLabel describes the span a filter covers.
func PeriodLabel(f model.CompetencyFilter, loc Locale) string {
	year, hasYear := f.Year()
	month, hasMonth := f.Month()
	name, _ := MonthName(month, loc)

	if loc == EN {
		switch {
		case hasYear && hasMonth:
			return fmt.Sprintf("%s/%d", name, year)
		case hasYear:
			return fmt.Sprintf("Year %d (monthly average)", year)
		case hasMonth:
			return fmt.Sprintf("%s (average across all years)", name)
		default:
			return "All time"
		}
	}

	switch {
	case hasYear && hasMonth:
		return fmt.Sprintf("%s/%d", name, year)
	case hasYear:
		return fmt.Sprintf("Ano %d (média mensal)", year)
	case hasMonth:
		return fmt.Sprintf("Mês %s (média de todos os anos)", name)
	default:
		return "Todo o período"
	}
}

// Rates holds the three turnover percentages, already scaled 0-100.
type Rates struct {
	Total       float64 `json:"turnover_total"`
	Voluntary   float64 `json:"turnover_vol"`
	Involuntary float64 `json:"turnover_inv"`
}

// Deltas is period minus all-history for each rate. Positive means the
// period is above the baseline.
type Deltas struct {
	Total       float64 `json:"delta_total" yaml:"delta_total"`
	Voluntary   float64 `json:"delta_vol" yaml:"delta_vol"`
	Involuntary float64 `json:"delta_inv" yaml:"delta_inv"`
}

// Compare returns period - total for each rate. ok is false when the filter
// covers all time, where the two blocks describe the same span.
func Compare(period, total Rates, f model.CompetencyFilter) (d Deltas, ok bool) {
	if f.IsAllTime() {
		return Deltas{}, false
	}
	return Deltas{
		Total:       period.Total - total.Total,
		Voluntary:   period.Voluntary - total.Voluntary,
		Involuntary: period.Involuntary - total.Involuntary,
	}, true
}

// Rounded returns d with each delta rounded to one decimal.
func (d Deltas) Rounded() Deltas {
	return Deltas{
		Total:       Round1(d.Total),
		Voluntary:   Round1(d.Voluntary),
		Involuntary: Round1(d.Involuntary),
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}

// RoundCount rounds a count to the nearest whole number.
func RoundCount(v float64) int64 {
	return int64(math.Round(v))
}

// FormatRate renders a rate or average with one decimal.
func FormatRate(v float64) string {
	return strconv.FormatFloat(Round1(v), 'f', 1, 64)
}

// FormatPercent renders a 0-100 percentage with one decimal and a % sign.
func FormatPercent(v float64) string {
	return FormatRate(v) + "%"
}

// FormatCount renders a count as a whole number.
func FormatCount(v float64) string {
	return strconv.FormatInt(RoundCount(v), 10)
}
