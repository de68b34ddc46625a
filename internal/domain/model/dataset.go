// Package model contains domain models passed between layers.
package model

// Dataset is one uploaded workforce file as reported by the remote registry.
type Dataset struct {
	ID       string
	Name     string
	RowCount int
}

// AnalysisRequest is the fetch key for one view. Two requests with equal
// fields are the same fetch.
type AnalysisRequest struct {
	DatasetID string
	Filter    CompetencyFilter
	Kind      ViewKind
}
