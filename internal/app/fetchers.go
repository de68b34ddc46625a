package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// ErrMalformedPayload marks a results object that does not decode into the
// view's shape.
var ErrMalformedPayload = errors.New("malformed analysis payload")

// Presentation is the shaped result of one view.
type Presentation interface {
	Kind() model.ViewKind
}

// Fetcher shapes payloads and interprets failures for one view kind.
type Fetcher interface {
	Kind() model.ViewKind
	// Shape decodes the raw results object for key.
	Shape(key model.AnalysisRequest, raw json.RawMessage) (Presentation, error)
	// Interpret turns a failed call into the reason displayed on the view and
	// the error stored with it.
	Interpret(err error) (string, error)
}

// NewFetchers returns the four fetchers keyed by view.
func NewFetchers(loc comparison.Locale) map[model.ViewKind]Fetcher {
	return map[model.ViewKind]Fetcher{
		model.ViewOverview:  overviewFetcher{locale: loc},
		model.ViewHeadcount: headcountFetcher{locale: loc},
		model.ViewTurnover:  turnoverFetcher{locale: loc},
		model.ViewRisk:      riskFetcher{locale: loc},
	}
}

// decodeObject rejects anything but a JSON object before decoding into v.
func decodeObject(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: results is not an object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func loadFailure(loc comparison.Locale, err error) (string, error) {
	detail := err.Error()
	var fe *faults.Error
	if errors.As(err, &fe) && fe.Msg != "" {
		detail = fe.Msg
	}
	if loc == comparison.EN {
		return "Failed to load data: " + detail, err
	}
	return "Erro ao carregar dados: " + detail, err
}

type overviewFetcher struct{ locale comparison.Locale }

func (overviewFetcher) Kind() model.ViewKind { return model.ViewOverview }

func (f overviewFetcher) Shape(key model.AnalysisRequest, raw json.RawMessage) (Presentation, error) {
	var ov Overview
	if err := decodeObject(raw, &ov); err != nil {
		return nil, err
	}
	ov.Filter = key.Filter
	ov.PeriodLabel = comparison.PeriodLabel(key.Filter, f.locale)
	if d, ok := comparison.Compare(ov.Turnover.Rates(), ov.TurnoverTotal.Rates(), key.Filter); ok {
		rounded := d.Rounded()
		ov.Deltas = &rounded
	}
	ov.Display = ov.display()
	return &ov, nil
}

func (f overviewFetcher) Interpret(err error) (string, error) { return loadFailure(f.locale, err) }

type headcountFetcher struct{ locale comparison.Locale }

func (headcountFetcher) Kind() model.ViewKind { return model.ViewHeadcount }

func (headcountFetcher) Shape(_ model.AnalysisRequest, raw json.RawMessage) (Presentation, error) {
	var hc Headcount
	if err := decodeObject(raw, &hc); err != nil {
		return nil, err
	}
	return &hc, nil
}

func (f headcountFetcher) Interpret(err error) (string, error) { return loadFailure(f.locale, err) }

type turnoverFetcher struct{ locale comparison.Locale }

func (turnoverFetcher) Kind() model.ViewKind { return model.ViewTurnover }

func (f turnoverFetcher) Shape(key model.AnalysisRequest, raw json.RawMessage) (Presentation, error) {
	var to Turnover
	if err := decodeObject(raw, &to); err != nil {
		return nil, err
	}
	to.PeriodLabel = comparison.PeriodLabel(key.Filter, f.locale)
	for i := range to.History {
		p := &to.History[i]
		p.Total = comparison.Round1(p.Total)
		p.Voluntary = comparison.Round1(p.Voluntary)
		p.Involuntary = comparison.Round1(p.Involuntary)
	}
	to.Display = to.Period.Display()
	return &to, nil
}

func (f turnoverFetcher) Interpret(err error) (string, error) { return loadFailure(f.locale, err) }

type riskFetcher struct{ locale comparison.Locale }

func (riskFetcher) Kind() model.ViewKind { return model.ViewRisk }

func (riskFetcher) Shape(_ model.AnalysisRequest, raw json.RawMessage) (Presentation, error) {
	var results map[string]any
	if err := decodeObject(raw, &results); err != nil {
		return nil, err
	}
	return &Risk{Results: results}, nil
}

// Interpret treats every risk failure as an entitlement denial. The service
// does not distinguish outages from missing entitlement on this endpoint.
func (f riskFetcher) Interpret(err error) (string, error) {
	return EntitlementMessage(f.locale), &faults.Error{
		Op:     "analyze_risk",
		Kind:   faults.ErrEntitlement,
		Status: faults.StatusOf(err),
		Err:    err,
	}
}

// EntitlementMessage is the fixed text shown when risk analysis is unavailable.
func EntitlementMessage(loc comparison.Locale) string {
	if loc == comparison.EN {
		return "Risk analysis (TRI) requires elevated subscription"
	}
	return "Análise de Risco (TRI) requer assinatura Premium"
}
