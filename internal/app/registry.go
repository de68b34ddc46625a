package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lrgtech/peopleanalytics/internal/adapters/remote"
	"github.com/lrgtech/peopleanalytics/internal/adapters/workbook"
	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
	"github.com/lrgtech/peopleanalytics/pkg/metrics"
)

// Registry defaults.
const (
	defaultMaxUploadBytes = 50 << 20
)

// DatasetService is the remote half of the registry.
type DatasetService interface {
	ListDatasets(ctx context.Context) ([]model.Dataset, error)
	Upload(ctx context.Context, filename string, content io.Reader) (remote.UploadResult, error)
	DeleteDataset(ctx context.Context, id string) error
}

// Preflighter checks upload content before it leaves the process.
type Preflighter interface {
	Inspect(ctx context.Context, filename string, content []byte) (workbook.Report, error)
}

// Registry lists, uploads and removes datasets.
type Registry struct {
	remote     DatasetService
	preflight  Preflighter
	extensions []string
	maxBytes   int64
	logger     logger.Logger

	mu      sync.Mutex
	lastErr error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAllowedExtensions replaces the accepted file extensions.
func WithAllowedExtensions(exts ...string) RegistryOption {
	return func(r *Registry) {
		if len(exts) > 0 {
			r.extensions = exts
		}
	}
}

// WithMaxUploadBytes caps the upload size.
func WithMaxUploadBytes(n int64) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithPreflighter sets the content check run before upload. Nil disables it.
func WithPreflighter(p Preflighter) RegistryOption {
	return func(r *Registry) {
		r.preflight = p
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry returns a registry accepting .xlsx and .xls files up to 50 MiB.
func NewRegistry(svc DatasetService, opts ...RegistryOption) *Registry {
	r := &Registry{
		remote:     svc,
		preflight:  workbook.NewInspector(),
		extensions: []string{".xlsx", ".xls"},
		maxBytes:   defaultMaxUploadBytes,
		logger:     logger.Get().Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the datasets in service order. A failure yields an empty list
// and is kept for LastError.
func (r *Registry) List(ctx context.Context) []model.Dataset {
	datasets, err := r.remote.ListDatasets(ctx)

	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn(ctx, "listing datasets failed", logger.Error(err))
		metrics.RecordErrorByComponent("registry", "list_failed")
		metrics.UpdateDatasetCount(0)
		return []model.Dataset{}
	}
	metrics.UpdateDatasetCount(len(datasets))
	return datasets
}

// LastError returns the error of the most recent List, or nil.
func (r *Registry) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Accepts reports whether name carries an allowed extension.
func (r *Registry) Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range r.extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Upload validates and sends a spreadsheet. It returns the new dataset.
func (r *Registry) Upload(ctx context.Context, name string, content io.Reader) (model.Dataset, error) {
	const op = "upload"

	if !r.Accepts(name) {
		metrics.RecordUpload("rejected")
		return model.Dataset{}, faults.Validation(op, "file %q must end in one of %s", name, strings.Join(r.extensions, ", "))
	}

	data, err := io.ReadAll(io.LimitReader(content, r.maxBytes+1))
	if err != nil {
		metrics.RecordUpload("failed")
		return model.Dataset{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		metrics.RecordUpload("rejected")
		return model.Dataset{}, faults.Validation(op, "file %q exceeds %d bytes", name, r.maxBytes)
	}

	if r.preflight != nil {
		report, err := r.preflight.Inspect(ctx, name, data)
		if err != nil {
			metrics.RecordUpload("rejected")
			return model.Dataset{}, err
		}
		if !report.Skipped {
			r.logger.Debug(ctx, "workbook preflight passed",
				logger.String("file", name),
				logger.Any("rows", report.DataRows),
			)
		}
	}

	res, err := r.remote.Upload(ctx, name, bytes.NewReader(data))
	if err != nil {
		metrics.RecordUpload("failed")
		r.logger.Warn(ctx, "upload failed", logger.String("file", name), logger.Error(err))
		return model.Dataset{}, err
	}
	metrics.RecordUpload("accepted")
	r.logger.Info(ctx, "dataset uploaded",
		logger.String("dataset_id", res.DatasetID),
		logger.String("file", name),
		logger.Int("rows", res.Dataset.RowCount),
	)
	return res.Dataset, nil
}

// Remove deletes a dataset. A dataset that is already gone yields an error
// matching faults.ErrNotFound.
func (r *Registry) Remove(ctx context.Context, id string) error {
	err := r.remote.DeleteDataset(ctx, id)
	switch {
	case err == nil:
		r.logger.Info(ctx, "dataset removed", logger.String("dataset_id", id))
	case errors.Is(err, faults.ErrNotFound):
		r.logger.Debug(ctx, "dataset already removed", logger.String("dataset_id", id))
	default:
		metrics.RecordErrorByComponent("registry", "remove_failed")
	}
	return err
}
