package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrInvalidConfig marks a report configuration that cannot run.
var ErrInvalidConfig = errors.New("invalid report config")

// Config holds configuration for one report run.
type Config struct {
	BaseURL   string        // Analytics service root
	Prefix    string        // API path prefix
	TokenFile string        // Bearer token file, optional
	DatasetID string        // Dataset to report on, unless Upload is set
	Upload    string        // Workbook to upload and report on
	Periods   []Period      // Filters to report, all time when empty
	Locale    string        // pt-BR or en
	Views     []string      // Views to include, all when empty
	Format    string        // yaml or json
	Output    string        // Output file, stdout when empty
	Timeout   time.Duration // Per-request timeout
	Verbose   bool          // Debug logging
}

// Period is one competency filter to report on. Nil fields are unset.
type Period struct {
	Year  *int
	Month *int
}

// ParsePeriod reads "all", "2024", "2024-03" or "*-03".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Period{}, nil
	}
	yearPart, monthPart, hasMonth := strings.Cut(s, "-")

	var p Period
	if yearPart != "*" {
		y, err := strconv.Atoi(yearPart)
		if err != nil {
			return Period{}, fmt.Errorf("%w: bad year in period %q", ErrInvalidConfig, s)
		}
		p.Year = &y
	}
	if hasMonth {
		m, err := strconv.Atoi(monthPart)
		if err != nil || m < 1 || m > 12 {
			return Period{}, fmt.Errorf("%w: bad month in period %q", ErrInvalidConfig, s)
		}
		p.Month = &m
	}
	if p.Year == nil && p.Month == nil {
		return Period{}, fmt.Errorf("%w: empty period %q", ErrInvalidConfig, s)
	}
	return p, nil
}

// ReportPeriods returns Periods, or a single all-time period.
func (c *Config) ReportPeriods() []Period {
	if len(c.Periods) == 0 {
		return []Period{{}}
	}
	return c.Periods
}

// ViewKinds parses Views, defaulting to every view in display order.
func (c *Config) ViewKinds() ([]model.ViewKind, error) {
	if len(c.Views) == 0 {
		return model.AllViews(), nil
	}
	kinds := make([]model.ViewKind, 0, len(c.Views))
	for _, v := range c.Views {
		k, err := model.ParseViewKind(v)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Validate checks the fields a run needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: url must not be empty", ErrInvalidConfig)
	}
	if c.DatasetID == "" && c.Upload == "" {
		return fmt.Errorf("%w: one of dataset or upload is required", ErrInvalidConfig)
	}
	if c.DatasetID != "" && c.Upload != "" {
		return fmt.Errorf("%w: dataset and upload are mutually exclusive", ErrInvalidConfig)
	}
	switch c.Format {
	case FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	if _, err := c.ViewKinds(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
