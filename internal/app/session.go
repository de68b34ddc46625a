// Package service wires the filter manager, the view controller, the dataset
// registry and the per-view fetchers into one Session.
//
// Every filter or view notification recomputes the request key of the active
// view. A new key moves the view to Loading and dispatches a job to the worker
// pool; the settled job is applied only if its key is still current.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/lrgtech/peopleanalytics/internal/adapters/mq/queue"
	"github.com/lrgtech/peopleanalytics/internal/adapters/mq/worker"
	"github.com/lrgtech/peopleanalytics/internal/domain/comparison"
	"github.com/lrgtech/peopleanalytics/internal/domain/faults"
	"github.com/lrgtech/peopleanalytics/internal/domain/filter"
	"github.com/lrgtech/peopleanalytics/internal/domain/inflight"
	"github.com/lrgtech/peopleanalytics/internal/domain/model"
	"github.com/lrgtech/peopleanalytics/internal/domain/view"
	"github.com/lrgtech/peopleanalytics/pkg/logger"
	"github.com/lrgtech/peopleanalytics/pkg/metrics"
)

// Health values reported by Session.Health.
const (
	HealthHealthy = "healthy"
	HealthError   = "error"
)

// Remote is everything the session needs from the analytics service.
type Remote interface {
	DatasetService
	worker.Executor
	Health(ctx context.Context) error
}

// ViewState is the fetch state of one view.
type ViewState = model.FetchState[Presentation]

// StateListener observes every view state change, in order. It must not call
// back into mutating Session methods.
type StateListener func(kind model.ViewKind, st ViewState)

// Snapshot is the whole session state at one instant.
type Snapshot struct {
	DatasetID     string
	Filter        model.CompetencyFilter
	ActiveView    model.ViewKind
	Datasets      []model.Dataset
	DatasetsError error
	Views         map[model.ViewKind]ViewState
}

type entry struct {
	state   ViewState
	lastKey model.AnalysisRequest
	hasKey  bool
}

// Session is the orchestration core for one user.
type Session struct {
	mu sync.Mutex
	// notifyMu keeps listener calls in transition order.
	notifyMu sync.Mutex

	filters  *filter.Manager
	views    *view.Controller
	registry *Registry
	remote   Remote
	fetchers map[model.ViewKind]Fetcher
	entries  map[model.ViewKind]*entry
	datasets []model.Dataset
	inflight inflight.Tracker[model.AnalysisRequest]

	queue queue.Queue
	pool  *worker.Pool

	locale       comparison.Locale
	workerCount  int
	queueSize    int
	registryOpts []RegistryOption
	listeners    []StateListener

	// batch suppresses reconciliation while a compound update runs.
	batch   int
	pending bool

	started bool
	stopped bool
	unsub   []func()

	logger logger.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLocale sets the label and message language.
func WithLocale(loc comparison.Locale) Option {
	return func(s *Session) {
		s.locale = loc
	}
}

// WithWorkerCount sets the number of fetch workers.
func WithWorkerCount(count int) Option {
	return func(s *Session) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the fetch queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRegistryOptions forwards options to the dataset registry.
func WithRegistryOptions(opts ...RegistryOption) Option {
	return func(s *Session) {
		s.registryOpts = append(s.registryOpts, opts...)
	}
}

// WithStateListener adds a view state observer.
func WithStateListener(fn StateListener) Option {
	return func(s *Session) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a session over svc. Call Start before driving it.
func New(svc Remote, opts ...Option) *Session {
	s := &Session{
		filters:     filter.NewManager(),
		views:       view.NewController(),
		remote:      svc,
		entries:     make(map[model.ViewKind]*entry, len(model.AllViews())),
		locale:      comparison.PtBR,
		workerCount: runtime.NumCPU(),
		queueSize:   64,
		logger:      logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = NewRegistry(svc, s.registryOpts...)
	s.fetchers = NewFetchers(s.locale)
	for _, kind := range model.AllViews() {
		s.entries[kind] = &entry{state: model.Idle[Presentation](model.ReasonNoDataset)}
	}
	s.inflight = inflight.NewTracker[model.AnalysisRequest](inflight.WithSizeObserver(metrics.UpdateInFlightFetches))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, svc, s)
	return s
}

// Start launches the workers and subscribes to filter and view changes.
// A stopped session gets a fresh queue and pool and re-dispatches the
// active view.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	restart := s.stopped
	if restart {
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.pool = worker.NewPool(s.workerCount, s.queue, s.remote, s)
		s.stopped = false
	}
	pool := s.pool
	s.mu.Unlock()

	pool.Start(ctx)
	s.unsub = append(s.unsub,
		s.filters.Subscribe(func(ctx context.Context, c filter.Change) {
			s.logger.Debug(ctx, "selection changed",
				logger.String("field", string(c.Field)),
				logger.String("dataset_id", c.Current.DatasetID),
				logger.String("filter", c.Current.Filter.String()),
			)
			s.reconcile(ctx, true)
		}),
		s.views.Subscribe(func(ctx context.Context, c view.Change) {
			s.logger.Debug(ctx, "view changed",
				logger.String("from", string(c.Previous)),
				logger.String("to", string(c.Current)),
			)
			s.reconcile(ctx, false)
		}),
	)

	s.logger.Info(ctx, "session started",
		logger.Int("workers", pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("locale", string(s.locale)),
		logger.Bool("restart", restart),
	)
	if restart {
		s.reconcile(ctx, false)
	}
	return nil
}

// Stop unsubscribes and shuts the worker pool down. Queued fetches are
// dropped; views left loading are dispatched again by the next Start.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	unsub := s.unsub
	s.unsub = nil
	pool := s.pool
	s.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	err := pool.Shutdown(ctx)
	s.inflight.Clear(ctx)

	s.mu.Lock()
	s.stopped = true
	for _, e := range s.entries {
		if e.state.Status == model.StatusLoading {
			e.hasKey = false
		}
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "session stopped")
	return err
}

// Registry returns the dataset registry.
func (s *Session) Registry() *Registry { return s.registry }

// Locale returns the label language.
func (s *Session) Locale() comparison.Locale { return s.locale }

// LoadDatasets refreshes the dataset list and offers it to the filter manager.
// A listing failure leaves an empty list; see Snapshot.DatasetsError.
func (s *Session) LoadDatasets(ctx context.Context) []model.Dataset {
	datasets := s.registry.List(ctx)

	s.mu.Lock()
	s.datasets = datasets
	s.mu.Unlock()

	s.filters.Offer(ctx, datasets)
	return datasets
}

// Upload sends a spreadsheet, refreshes the list, activates the new dataset
// and returns to Overview. On failure nothing changes.
func (s *Session) Upload(ctx context.Context, name string, content io.Reader) (model.Dataset, error) {
	ds, err := s.registry.Upload(ctx, name, content)
	if err != nil {
		return model.Dataset{}, err
	}

	s.batched(ctx, func() {
		datasets := s.registry.List(ctx)
		if !containsDataset(datasets, ds.ID) {
			datasets = append(datasets, ds)
		}
		s.mu.Lock()
		s.datasets = datasets
		s.mu.Unlock()

		s.filters.Offer(ctx, datasets)
		if err := s.filters.SetDataset(ctx, ds.ID); err != nil {
			s.logger.Error(ctx, "activating uploaded dataset", logger.Error(err))
		}
		_ = s.views.Select(ctx, model.ViewOverview)
	})
	return ds, nil
}

// Remove deletes a dataset. If it was active the selection becomes absent,
// including when the service no longer knows it.
func (s *Session) Remove(ctx context.Context, id string) error {
	err := s.registry.Remove(ctx, id)
	if err != nil && !errors.Is(err, faults.ErrNotFound) {
		return err
	}

	s.batched(ctx, func() {
		if s.filters.Snapshot().DatasetID == id {
			s.filters.ClearDataset(ctx)
		}
		datasets := s.registry.List(ctx)
		s.mu.Lock()
		s.datasets = datasets
		s.mu.Unlock()
		s.filters.Offer(ctx, datasets)
	})
	return err
}

// SelectDataset activates id. Ids the registry did not offer are rejected.
func (s *Session) SelectDataset(ctx context.Context, id string) error {
	return s.filters.SetDataset(ctx, id)
}

// ClearDataset makes the selection absent.
func (s *Session) ClearDataset(ctx context.Context) { s.filters.ClearDataset(ctx) }

// SetYear sets the competency year.
func (s *Session) SetYear(ctx context.Context, year int) { s.filters.SetYear(ctx, year) }

// ClearYear removes the competency year.
func (s *Session) ClearYear(ctx context.Context) { s.filters.ClearYear(ctx) }

// SetMonth sets the competency month.
func (s *Session) SetMonth(ctx context.Context, month int) error {
	return s.filters.SetMonth(ctx, month)
}

// ClearMonth removes the competency month.
func (s *Session) ClearMonth(ctx context.Context) { s.filters.ClearMonth(ctx) }

// SetFilter replaces both filter fields as one change. Nil clears a field.
func (s *Session) SetFilter(ctx context.Context, year, month *int) error {
	if err := validMonth(month); err != nil {
		return err
	}
	s.batched(ctx, func() { s.applyFilter(ctx, year, month) })
	return nil
}

// Selection replaces the dataset and both filter fields at once. An empty
// DatasetID clears the dataset.
type Selection struct {
	DatasetID string
	Year      *int
	Month     *int
}

// ApplySelection applies sel as one change. An invalid month or a dataset the
// registry never offered rejects the whole selection.
func (s *Session) ApplySelection(ctx context.Context, sel Selection) error {
	if err := validMonth(sel.Month); err != nil {
		return err
	}
	if sel.DatasetID != "" && !s.filters.Offered(sel.DatasetID) {
		return fmt.Errorf("%w: %q", filter.ErrUnknownDataset, sel.DatasetID)
	}
	var err error
	s.batched(ctx, func() {
		if sel.DatasetID == "" {
			s.filters.ClearDataset(ctx)
		} else {
			err = s.filters.SetDataset(ctx, sel.DatasetID)
		}
		s.applyFilter(ctx, sel.Year, sel.Month)
	})
	return err
}

func (s *Session) applyFilter(ctx context.Context, year, month *int) {
	if year != nil {
		s.filters.SetYear(ctx, *year)
	} else {
		s.filters.ClearYear(ctx)
	}
	if month != nil {
		_ = s.filters.SetMonth(ctx, *month)
	} else {
		s.filters.ClearMonth(ctx)
	}
}

func validMonth(month *int) error {
	if month != nil && (*month < 1 || *month > 12) {
		return fmt.Errorf("%w: got %d", filter.ErrInvalidMonth, *month)
	}
	return nil
}

// SelectView makes kind the active view.
func (s *Session) SelectView(ctx context.Context, kind model.ViewKind) error {
	return s.views.Select(ctx, kind)
}

// Reload forgets the active view's last key so the next reconciliation
// fetches again.
func (s *Session) Reload(ctx context.Context) {
	s.mu.Lock()
	s.entries[s.views.Active()].hasKey = false
	s.mu.Unlock()
	s.reconcile(ctx, false)
}

// ViewState returns the state of one view.
func (s *Session) ViewState(kind model.ViewKind) (ViewState, error) {
	if !kind.Valid() {
		return ViewState{}, fmt.Errorf("%w: %q", model.ErrUnknownView, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[kind].state, nil
}

// Snapshot returns the selection, the active view and every view state.
func (s *Session) Snapshot() Snapshot {
	sel := s.filters.Snapshot()
	active := s.views.Active()

	s.mu.Lock()
	defer s.mu.Unlock()
	views := make(map[model.ViewKind]ViewState, len(s.entries))
	for kind, e := range s.entries {
		views[kind] = e.state
	}
	datasets := make([]model.Dataset, len(s.datasets))
	copy(datasets, s.datasets)
	return Snapshot{
		DatasetID:     sel.DatasetID,
		Filter:        sel.Filter,
		ActiveView:    active,
		Datasets:      datasets,
		DatasetsError: s.registry.LastError(),
		Views:         views,
	}
}

// Health reports HealthHealthy when the service answers its liveness check.
func (s *Session) Health(ctx context.Context) (string, error) {
	if err := s.remote.Health(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", logger.Error(err))
		return HealthError, err
	}
	return HealthHealthy, nil
}

// batched runs fn with reconciliation deferred, then reconciles once.
func (s *Session) batched(ctx context.Context, fn func()) {
	s.mu.Lock()
	s.batch++
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.batch--
	run := s.batch == 0 && s.pending
	if run {
		s.pending = false
	}
	s.mu.Unlock()
	if run {
		s.reconcile(ctx, true)
	}
}

type transition struct {
	kind  model.ViewKind
	state ViewState
}

// reconcile recomputes every view's key and dispatches the active one when
// its key changed. selectionChanged resets inactive views so they refetch
// when shown again.
func (s *Session) reconcile(ctx context.Context, selectionChanged bool) {
	s.mu.Lock()
	if s.batch > 0 {
		s.pending = true
		s.mu.Unlock()
		return
	}
	// Read under mu so the last reconcile to run sees the final selection.
	sel := s.filters.Snapshot()
	active := s.views.Active()

	var changes []transition
	set := func(kind model.ViewKind, e *entry, st ViewState) {
		e.state = st
		changes = append(changes, transition{kind: kind, state: st})
		metrics.RecordFetchTransition(string(kind), string(st.Status))
	}

	for _, kind := range model.AllViews() {
		e := s.entries[kind]
		if kind != active {
			if selectionChanged && (e.hasKey || e.state.Status != model.StatusIdle || e.state.Reason != idleReason(sel)) {
				e.hasKey = false
				set(kind, e, model.Idle[Presentation](idleReason(sel)))
			}
			continue
		}

		if !sel.HasDataset() {
			e.hasKey = false
			if !e.state.Empty() {
				set(kind, e, model.Idle[Presentation](model.ReasonNoDataset))
			}
			continue
		}

		key := model.AnalysisRequest{DatasetID: sel.DatasetID, Filter: sel.Filter, Kind: kind}
		if e.hasKey && e.lastKey == key {
			continue
		}
		e.lastKey, e.hasKey = key, true
		set(kind, e, model.Loading[Presentation](key))

		if !s.inflight.Begin(ctx, key) {
			metrics.RecordDuplicateSuppressed(string(kind))
			s.logger.Debug(ctx, "adopting in-flight fetch", logger.String("view", string(kind)))
			continue
		}
		job := queue.NewJob(key)
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.inflight.Done(ctx, key)
			s.logger.Warn(ctx, "dispatch failed", logger.String("view", string(kind)), logger.Error(err))
			reason, stored := s.fetchers[kind].Interpret(fmt.Errorf("dispatch: %w", err))
			set(kind, e, model.Failed[Presentation](key, stored, reason))
			continue
		}
		s.logger.Debug(ctx, "fetch dispatched",
			logger.String("job_id", job.ID),
			logger.String("view", string(kind)),
			logger.String("dataset_id", key.DatasetID),
			logger.String("filter", key.Filter.String()),
		)
	}

	s.publish(changes)
}

func idleReason(sel filter.Snapshot) string {
	if sel.HasDataset() {
		return ""
	}
	return model.ReasonNoDataset
}

// Settle applies a finished job. Results for keys that are no longer current
// are discarded.
func (s *Session) Settle(ctx context.Context, job queue.Job, result json.RawMessage, err error) {
	key := job.Request
	s.inflight.Done(ctx, key)

	fetcher, ok := s.fetchers[key.Kind]
	if !ok {
		s.logger.Error(ctx, "settled job for unknown view", logger.String("view", string(key.Kind)))
		return
	}

	var (
		next    ViewState
		outcome = "success"
	)
	if err == nil {
		pres, shapeErr := fetcher.Shape(key, result)
		if shapeErr != nil {
			err = shapeErr
		} else {
			next = model.Succeeded(key, pres)
		}
	}
	if err != nil {
		outcome = "failure"
		reason, stored := fetcher.Interpret(err)
		next = model.Failed[Presentation](key, stored, reason)
	}

	s.mu.Lock()
	e := s.entries[key.Kind]
	if !e.hasKey || e.lastKey != key || e.state.Status != model.StatusLoading {
		s.mu.Unlock()
		metrics.RecordStaleResponse(string(key.Kind))
		s.logger.Debug(ctx, "discarding stale response",
			logger.String("job_id", job.ID),
			logger.String("view", string(key.Kind)),
			logger.String("filter", key.Filter.String()),
		)
		return
	}
	e.state = next
	metrics.RecordFetchTransition(string(key.Kind), string(next.Status))
	metrics.RecordFetchLatency(string(key.Kind), outcome, float64(time.Since(job.Enqueued).Milliseconds()))
	if err != nil {
		s.logger.Warn(ctx, "fetch failed",
			logger.String("view", string(key.Kind)),
			logger.String("dataset_id", key.DatasetID),
			logger.Error(err),
		)
	}
	s.publish([]transition{{kind: key.Kind, state: next}})
}

// publish releases s.mu and notifies listeners in order. It must be called
// with s.mu held.
func (s *Session) publish(changes []transition) {
	if len(changes) == 0 || len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	s.notifyMu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c.kind, c.state)
		}
	}
}

func containsDataset(datasets []model.Dataset, id string) bool {
	for _, d := range datasets {
		if d.ID == id {
			return true
		}
	}
	return false
}
