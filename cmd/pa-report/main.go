package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lrgtech/peopleanalytics/internal/adapters/auth"
	"github.com/lrgtech/peopleanalytics/internal/adapters/remote"
	"github.com/lrgtech/peopleanalytics/internal/report"
)

// Default configuration constants.
const (
	defaultTimeout   = 30 * time.Second
	defaultRunBudget = 5 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Analytics service root")
		prefix    = flag.String("prefix", remote.DefaultPrefix, "API path prefix")
		tokenFile = flag.String("token-file", "", "File holding the bearer token")
		datasetID = flag.String("dataset", "", "Dataset id to report on")
		upload    = flag.String("upload", "", "Workbook to upload and report on")
		periods   = flag.String("periods", "all", "Comma separated periods: all, 2024, 2024-03 or *-03")
		locale    = flag.String("locale", "pt-BR", "Label language: pt-BR or en")
		views     = flag.String("views", "", "Comma separated views (default all)")
		format    = flag.String("format", report.FormatYAML, "Output format: yaml or json")
		output    = flag.String("output", "", "Output file (default stdout)")
		timeout   = flag.Duration("timeout", defaultTimeout, "Per-request timeout")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		report.ShowHelp()
		return
	}

	if err := report.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	var parsed []report.Period
	for _, p := range splitList(*periods) {
		period, err := report.ParsePeriod(p)
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(2)
		}
		parsed = append(parsed, period)
	}

	cfg := &report.Config{
		BaseURL:   *baseURL,
		Prefix:    *prefix,
		TokenFile: *tokenFile,
		DatasetID: *datasetID,
		Upload:    *upload,
		Periods:   parsed,
		Locale:    *locale,
		Views:     splitList(*views),
		Format:    strings.ToLower(*format),
		Output:    *output,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunBudget)
	defer cancel()

	opts := []remote.Option{remote.WithPrefix(cfg.Prefix), remote.WithTimeout(cfg.Timeout)}
	if cfg.TokenFile != "" {
		opts = append(opts, remote.WithTokenSource(auth.NewFileStore(cfg.TokenFile)))
	}
	rep, err := report.Run(ctx, cfg, remote.New(cfg.BaseURL, opts...))
	if err != nil {
		os.Stderr.WriteString("Report failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			os.Stderr.WriteString("Failed to create output: " + err.Error() + "\n")
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := report.Write(w, rep, cfg.Format); err != nil {
		os.Stderr.WriteString("Failed to write report: " + err.Error() + "\n")
		os.Exit(1)
	}
	if n := rep.Failed(); n > 0 {
		os.Stderr.WriteString("Some views failed; see reasons in the report\n")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
