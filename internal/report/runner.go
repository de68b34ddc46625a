package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	service "github.com/lrgtech/peopleanalytics/internal/app"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
)

// ErrNoDataset is returned when a view cannot fetch because nothing is selected.
var ErrNoDataset = errors.New("no dataset selected")

// Run checks the service, selects or uploads the configured dataset and
// settles every requested view for every period, one at a time. Failed
// views are reported, not returned as errors.
func Run(ctx context.Context, cfg *Config, svc service.Remote) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kinds, _ := cfg.ViewKinds()
	log := logger.Get().Named("report")

	updates := make(chan struct{}, 1)
	sess := service.New(svc,
		service.WithLocale(comparison.ParseLocale(cfg.Locale)),
		service.WithWorkerCount(1),
		service.WithStateListener(func(model.ViewKind, service.ViewState) {
			select {
			case updates <- struct{}{}:
			default:
			}
		}),
	)

	log.Info(ctx, "starting report",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("dataset", cfg.DatasetID),
		logger.String("upload", cfg.Upload),
		logger.Int("periods", len(cfg.ReportPeriods())),
		logger.Any("views", kinds))

	// Step 1: Check service health
	health, err := sess.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = sess.Stop(context.Background()) }()

	// Step 2: Select or upload the dataset
	ds, err := selectDataset(ctx, sess, cfg)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		GeneratedAt: time.Now().UTC(),
		Health:      health,
		Locale:      string(sess.Locale()),
		Dataset:     Dataset{ID: ds.ID, Name: ds.Name, Rows: ds.RowCount},
	}

	// Step 3: Settle every view per period
	for _, p := range cfg.ReportPeriods() {
		if err := sess.SetFilter(ctx, p.Year, p.Month); err != nil {
			return nil, err
		}
		block := PeriodBlock{
			Year:  p.Year,
			Month: p.Month,
			Label: comparison.PeriodLabel(sess.Snapshot().Filter, sess.Locale()),
		}
		for _, kind := range kinds {
			sec, err := settle(ctx, sess, kind, updates)
			if err != nil {
				return nil, err
			}
			block.Sections = append(block.Sections, sec)
		}
		rep.Periods = append(rep.Periods, block)
	}

	log.Info(ctx, "report complete",
		logger.Int("periods", len(rep.Periods)),
		logger.Int("failed", rep.Failed()))
	return rep, nil
}

func selectDataset(ctx context.Context, sess *service.Session, cfg *Config) (model.Dataset, error) {
	if cfg.Upload != "" {
		f, err := os.Open(cfg.Upload)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("open upload: %w", err)
		}
		defer func() { _ = f.Close() }()

		ds, err := sess.Upload(ctx, filepath.Base(cfg.Upload), f)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("upload: %w", err)
		}
		return ds, nil
	}

	datasets := sess.LoadDatasets(ctx)
	if err := sess.Snapshot().DatasetsError; err != nil {
		return model.Dataset{}, fmt.Errorf("list datasets: %w", err)
	}
	if err := sess.SelectDataset(ctx, cfg.DatasetID); err != nil {
		return model.Dataset{}, err
	}
	for _, d := range datasets {
		if d.ID == cfg.DatasetID {
			return d, nil
		}
	}
	return model.Dataset{ID: cfg.DatasetID}, nil
}

func settle(ctx context.Context, sess *service.Session, kind model.ViewKind, updates <-chan struct{}) (Section, error) {
	start := time.Now()
	if err := sess.SelectView(ctx, kind); err != nil {
		return Section{}, err
	}
	st, err := waitSettled(ctx, sess, kind, updates)
	if err != nil {
		return Section{}, fmt.Errorf("%s: %w", kind, err)
	}

	sec := Section{View: kind, Status: st.Status, Reason: st.Reason}
	if st.Status == model.StatusSuccess {
		sec.Result = st.Result
	}
	logger.Get().Named("report").Debug(ctx, "view settled",
		logger.String("view", string(kind)),
		logger.String("status", string(st.Status)),
		logger.Duration("took", time.Since(start)))
	return sec, nil
}

// waitSettled blocks until kind reaches Success or Failure.
func waitSettled(ctx context.Context, sess *service.Session, kind model.ViewKind, updates <-chan struct{}) (service.ViewState, error) {
	for {
		st, err := sess.ViewState(kind)
		if err != nil {
			return st, err
		}
		switch st.Status {
		case model.StatusSuccess, model.StatusFailure:
			return st, nil
		case model.StatusIdle:
			return st, ErrNoDataset
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-updates:
		}
	}
}
