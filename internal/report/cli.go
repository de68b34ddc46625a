package report

import (
	"fmt"
	"os"

	"github.com/lrgtech/peopleanalytics/pkg/logger"
)

// SetupLogging sends logs to stderr so stdout stays free for the report.
func SetupLogging(verbose bool) error {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the report tool.
func ShowHelp() {
	os.Stdout.WriteString(`People Analytics Report
=======================

Fetches every dashboard view for one dataset over one or more competency
periods and writes the shaped results as a single document.

Usage:
  go run ./cmd/pa-report [options]

Options:
  -url string
        Analytics service root (default "http://localhost:8000")
  -prefix string
        API path prefix (default "/api/v1")
  -token-file string
        File holding the bearer token
  -dataset string
        Dataset id to report on
  -upload string
        Workbook to upload and report on instead of -dataset
  -periods string
        Comma separated periods: all, 2024, 2024-03 or *-03 (default "all")
  -locale string
        Label language: pt-BR or en (default "pt-BR")
  -views string
        Comma separated views (default all: overview,headcount,turnover,risk)
  -format string
        yaml or json (default "yaml")
  -output string
        Output file (default stdout)
  -timeout duration
        Per-request timeout (default 30s)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Overview and turnover for March 2024 against the whole of 2024
  go run ./cmd/pa-report -dataset d1 -periods 2024-03,2024 -views overview,turnover

  # Upload a workbook and dump every view as JSON
  go run ./cmd/pa-report -upload base.xlsx -format json -output report.json
`)
}
