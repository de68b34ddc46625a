// Package workbook preflights spreadsheet uploads before they are sent to the
// analytics service.
package workbook

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
)

const op = "workbook preflight"

// Report summarises a preflighted workbook.
type Report struct {
	// Skipped is true for formats the inspector cannot open (.xls).
	Skipped bool
	Sheets  []string
	// DataRows counts rows below the header per required sheet.
	DataRows map[string]int
}

// Inspector checks that a workbook opens and holds the required sheets.
type Inspector struct {
	required []string
	logger   logger.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithRequiredSheets sets the worksheet names every workbook must contain.
// Matching is case-insensitive.
func WithRequiredSheets(names ...string) Option {
	return func(i *Inspector) {
		i.required = names
	}
}

// WithLogger sets the inspector logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Inspector) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInspector returns an inspector requiring the "colaboradores" sheet.
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{
		required: []string{"colaboradores"},
		logger:   logger.Get().Named("workbook"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect opens content as an .xlsx workbook. Legacy .xls files are passed
// through untouched. Any problem is a validation error.
func (i *Inspector) Inspect(ctx context.Context, filename string, content []byte) (Report, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".xlsx" {
		return Report{Skipped: true}, nil
	}

	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Report{}, faults.Validation(op, "%s is not a readable workbook: %v", filename, err)
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	byLower := make(map[string]string, len(sheets))
	for _, s := range sheets {
		byLower[strings.ToLower(strings.TrimSpace(s))] = s
	}

	rep := Report{Sheets: sheets, DataRows: make(map[string]int, len(i.required))}
	for _, want := range i.required {
		actual, ok := byLower[strings.ToLower(strings.TrimSpace(want))]
		if !ok {
			return Report{}, faults.Validation(op, "%s has no %q sheet", filename, want)
		}
		rows, err := wb.GetRows(actual)
		if err != nil {
			return Report{}, faults.Validation(op, "read sheet %q: %v", actual, err)
		}
		n := len(rows) - 1
		if n < 0 {
			n = 0
		}
		rep.DataRows[want] = n
	}

	i.logger.Debug(ctx, "workbook preflight passed",
		logger.String("file", filename),
		logger.Int("sheets", len(sheets)),
		logger.Any("data_rows", rep.DataRows),
	)
	return rep, nil
}
