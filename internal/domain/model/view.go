package model

import (
	"errors"
	"fmt"
	"strings"
)

// ViewKind names one analysis view. Exactly one is active at a time.
type ViewKind string

const (
	ViewOverview  ViewKind = "overview"
	ViewHeadcount ViewKind = "headcount"
	ViewTurnover  ViewKind = "turnover"
	ViewRisk      ViewKind = "risk"
)

// ErrUnknownView is returned for view names outside the fixed set.
var ErrUnknownView = errors.New("unknown view")

// AllViews lists every view in display order.
func AllViews() []ViewKind {
	return []ViewKind{ViewOverview, ViewHeadcount, ViewTurnover, ViewRisk}
}

// Valid reports whether k is one of the known views.
func (k ViewKind) Valid() bool {
	switch k {
	case ViewOverview, ViewHeadcount, ViewTurnover, ViewRisk:
		return true
	}
	return false
}

// ParseViewKind maps a case-insensitive name to a ViewKind.
func ParseViewKind(s string) (ViewKind, error) {
	k := ViewKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
	return k, nil
}
