package service

import (
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Record is one row of a tabular series as sent by the service.
type Record = map[string]any

// BasicKPIs is the current headcount block. Percentages are 0-100.
type BasicKPIs struct {
	TotalActive       float64 `json:"total_ativos" yaml:"total_active"`
	Female            float64 `json:"qtd_feminino" yaml:"female"`
	FemalePercent     float64 `json:"pct_feminino" yaml:"female_percent"`
	Male              float64 `json:"qtd_masculino" yaml:"male"`
	MalePercent       float64 `json:"pct_masculino" yaml:"male_percent"`
	Leadership        float64 `json:"qtd_lideranca" yaml:"leadership"`
	LeadershipPercent float64 `json:"pct_lideranca" yaml:"leadership_percent"`
}

// TurnoverBlock is one turnover computation over a span.
type TurnoverBlock struct {
	Total            float64 `json:"turnover_total" yaml:"turnover_total"`
	Voluntary        float64 `json:"turnover_vol" yaml:"turnover_vol"`
	Involuntary      float64 `json:"turnover_inv" yaml:"turnover_inv"`
	Active           float64 `json:"ativos" yaml:"active"`
	Dismissed        float64 `json:"desligados" yaml:"dismissed"`
	VoluntaryExits   float64 `json:"voluntarios" yaml:"voluntary_exits"`
	InvoluntaryExits float64 `json:"involuntarios" yaml:"involuntary_exits"`
	MonthsConsidered float64 `json:"meses_considerados" yaml:"months_considered"`
}

// Rates returns the three percentages used for comparison.
func (b TurnoverBlock) Rates() comparison.Rates {
	return comparison.Rates{Total: b.Total, Voluntary: b.Voluntary, Involuntary: b.Involuntary}
}

// Display renders the block as shown: rates with one decimal and a % sign,
// the average headcount as a whole number, exits with one decimal.
func (b TurnoverBlock) Display() TurnoverDisplay {
	return TurnoverDisplay{
		Total:            comparison.FormatPercent(b.Total),
		Voluntary:        comparison.FormatPercent(b.Voluntary),
		Involuntary:      comparison.FormatPercent(b.Involuntary),
		Active:           comparison.FormatCount(b.Active),
		Dismissed:        comparison.FormatRate(b.Dismissed),
		VoluntaryExits:   comparison.FormatRate(b.VoluntaryExits),
		InvoluntaryExits: comparison.FormatRate(b.InvoluntaryExits),
	}
}

// TurnoverDisplay is a TurnoverBlock formatted for display.
type TurnoverDisplay struct {
	Total            string `json:"turnover_total" yaml:"turnover_total"`
	Voluntary        string `json:"turnover_vol" yaml:"turnover_vol"`
	Involuntary      string `json:"turnover_inv" yaml:"turnover_inv"`
	Active           string `json:"ativos" yaml:"active"`
	Dismissed        string `json:"desligados" yaml:"dismissed"`
	VoluntaryExits   string `json:"voluntarios" yaml:"voluntary_exits"`
	InvoluntaryExits string `json:"involuntarios" yaml:"involuntary_exits"`
}

// ContractType is one row of the contract type breakdown.
type ContractType struct {
	Type    string  `json:"Tipo" yaml:"type"`
	Count   float64 `json:"Quantidade" yaml:"count"`
	Percent float64 `json:"Percentual (%)" yaml:"percent"`
}

// MonthlyDismissals summarises dismissals per month.
type MonthlyDismissals struct {
	AveragePerMonth float64 `json:"desligamentos_medio_mes" yaml:"average_per_month"`
	Total           float64 `json:"total_desligados" yaml:"total"`
	MonthsWithData  float64 `json:"meses_com_dados" yaml:"months_with_data"`
}

// Tenure is the average tenure before departure, in months.
type Tenure struct {
	Total       float64 `json:"tenure_total" yaml:"total"`
	Voluntary   float64 `json:"tenure_vol" yaml:"voluntary"`
	Involuntary float64 `json:"tenure_inv" yaml:"involuntary"`
}

// OverviewDisplay holds the Overview figures formatted for display.
type OverviewDisplay struct {
	TotalActive        string          `json:"total_ativos" yaml:"total_active"`
	FemalePercent      string          `json:"pct_feminino" yaml:"female_percent"`
	MalePercent        string          `json:"pct_masculino" yaml:"male_percent"`
	LeadershipPercent  string          `json:"pct_lideranca" yaml:"leadership_percent"`
	Turnover           TurnoverDisplay `json:"turnover" yaml:"turnover"`
	TurnoverTotal      TurnoverDisplay `json:"turnover_total" yaml:"turnover_total"`
	DismissalsPerMonth string          `json:"desligamentos_medio_mes" yaml:"dismissals_per_month"`
	TotalDismissed     string          `json:"total_desligados" yaml:"total_dismissed"`
	TenureTotal        string          `json:"tenure_total" yaml:"tenure_total"`
	TenureVoluntary    string          `json:"tenure_vol" yaml:"tenure_voluntary"`
	TenureInvoluntary  string          `json:"tenure_inv" yaml:"tenure_involuntary"`
}

// Overview is the consolidated KPI view. Deltas is nil when the filter
// covers all time and is rounded to one decimal otherwise.
type Overview struct {
	PeriodLabel       string                 `json:"period_label" yaml:"period_label"`
	Filter            model.CompetencyFilter `json:"-" yaml:"-"`
	KPIs              BasicKPIs              `json:"basic_kpis" yaml:"basic_kpis"`
	Turnover          TurnoverBlock          `json:"turnover" yaml:"turnover"`
	TurnoverTotal     TurnoverBlock          `json:"turnover_total" yaml:"turnover_total"`
	Deltas            *comparison.Deltas     `json:"deltas,omitempty" yaml:"deltas,omitempty"`
	ContractTypes     []ContractType         `json:"contract_types" yaml:"contract_types"`
	MonthlyDismissals MonthlyDismissals      `json:"monthly_dismissals" yaml:"monthly_dismissals"`
	Tenure            Tenure                 `json:"tenure" yaml:"tenure"`
	Display           OverviewDisplay        `json:"display" yaml:"display"`
}

func (*Overview) Kind() model.ViewKind { return model.ViewOverview }

func (ov *Overview) display() OverviewDisplay {
	return OverviewDisplay{
		TotalActive:        comparison.FormatCount(ov.KPIs.TotalActive),
		FemalePercent:      comparison.FormatPercent(ov.KPIs.FemalePercent),
		MalePercent:        comparison.FormatPercent(ov.KPIs.MalePercent),
		LeadershipPercent:  comparison.FormatPercent(ov.KPIs.LeadershipPercent),
		Turnover:           ov.Turnover.Display(),
		TurnoverTotal:      ov.TurnoverTotal.Display(),
		DismissalsPerMonth: comparison.FormatRate(ov.MonthlyDismissals.AveragePerMonth),
		TotalDismissed:     comparison.FormatCount(ov.MonthlyDismissals.Total),
		TenureTotal:        comparison.FormatRate(ov.Tenure.Total),
		TenureVoluntary:    comparison.FormatRate(ov.Tenure.Voluntary),
		TenureInvoluntary:  comparison.FormatRate(ov.Tenure.Involuntary),
	}
}

// Headcount holds the headcount series.
type Headcount struct {
	ByDepartment []Record `json:"headcount_by_department" yaml:"by_department"`
	Temporal     []Record `json:"headcount_temporal" yaml:"temporal"`
	Growth       []Record `json:"headcount_growth" yaml:"growth"`
	Gender       []Record `json:"headcount_gender" yaml:"gender"`
	Tenure       []Record `json:"headcount_tenure" yaml:"tenure"`
	Performance  []Record `json:"headcount_performance" yaml:"performance"`
}

func (*Headcount) Kind() model.ViewKind { return model.ViewHeadcount }

// TurnoverPoint is one month of turnover history. Rates are rounded to one
// decimal when shaped.
type TurnoverPoint struct {
	Month       string  `json:"Mês" yaml:"month"`
	Total       float64 `json:"Turnover Total (%)" yaml:"total"`
	Voluntary   float64 `json:"Turnover Voluntário (%)" yaml:"voluntary"`
	Involuntary float64 `json:"Turnover Involuntário (%)" yaml:"involuntary"`
}

// Turnover is the period turnover plus its monthly history.
type Turnover struct {
	PeriodLabel string          `json:"period_label" yaml:"period_label"`
	Period      TurnoverBlock   `json:"turnover_period" yaml:"period"`
	History     []TurnoverPoint `json:"turnover_history" yaml:"history"`
	Display     TurnoverDisplay `json:"display" yaml:"display"`
}

func (*Turnover) Kind() model.ViewKind { return model.ViewTurnover }

// Risk carries the model output when the service provides it.
type Risk struct {
	Results map[string]any `json:"results" yaml:"results"`
}

func (*Risk) Kind() model.ViewKind { return model.ViewRisk }
