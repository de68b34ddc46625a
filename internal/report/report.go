// Package report drives a dashboard session headlessly and writes every
// view it settles as a YAML or JSON document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Report is the document written by Run.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Health      string        `json:"health" yaml:"health"`
	Locale      string        `json:"locale" yaml:"locale"`
	Dataset     Dataset       `json:"dataset" yaml:"dataset"`
	Periods     []PeriodBlock `json:"periods" yaml:"periods"`
}

// Dataset identifies the reported dataset.
type Dataset struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Rows int    `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// PeriodBlock holds every view settled for one filter.
type PeriodBlock struct {
	Year     *int      `json:"year" yaml:"year"`
	Month    *int      `json:"month" yaml:"month"`
	Label    string    `json:"label" yaml:"label"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section is one settled view. Result is set on success, Reason on failure.
type Section struct {
	View   model.ViewKind       `json:"view" yaml:"view"`
	Status model.FetchStatus    `json:"status" yaml:"status"`
	Reason string               `json:"reason,omitempty" yaml:"reason,omitempty"`
	Result service.Presentation `json:"result,omitempty" yaml:"result,omitempty"`
}

// Failed counts sections that did not succeed.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Periods {
		for _, s := range p.Sections {
			if s.Status != model.StatusSuccess {
				n++
			}
		}
	}
	return n
}

// Write encodes r to w in format.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, format)
	}
}
