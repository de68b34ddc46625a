// Package filter owns the active dataset selection and the competency filter.
// Every effective change is published to subscribers.
package filter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Sentinel errors for rejected updates. A rejected update changes nothing.
var (
	ErrUnknownDataset = errors.New("dataset not offered by registry")
	ErrInvalidMonth   = errors.New("month must be in [1,12]")
)

// Field identifies what a Change touched.
type Field string

const (
	FieldDataset Field = "dataset"
	FieldYear    Field = "year"
	FieldMonth   Field = "month"
)

// Snapshot is the selection state at one instant. An empty DatasetID means
// no dataset is selected.
type Snapshot struct {
	DatasetID string
	Filter    model.CompetencyFilter
}

// HasDataset reports whether a dataset is selected.
func (s Snapshot) HasDataset() bool { return s.DatasetID != "" }

// Change describes one effective update.
type Change struct {
	Field    Field
	Previous Snapshot
	Current  Snapshot
}

// Listener receives changes synchronously, after the manager lock is released.
type Listener func(ctx context.Context, c Change)

type subscriber struct {
	id int
	fn Listener
}

// Manager holds the selection. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	state   Snapshot
	offered map[string]struct{}
	subs    []subscriber
	nextID  int
}

// NewManager returns a manager with nothing selected and nothing offered.
func NewManager() *Manager {
	return &Manager{offered: make(map[string]struct{})}
}

// Snapshot returns the current selection.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Offer replaces the set of datasets a caller may select. If the active
// dataset is no longer offered the selection becomes absent.
func (m *Manager) Offer(ctx context.Context, datasets []model.Dataset) {
	m.mu.Lock()
	m.offered = make(map[string]struct{}, len(datasets))
	for _, d := range datasets {
		m.offered[d.ID] = struct{}{}
	}
	if !m.state.HasDataset() {
		m.mu.Unlock()
		return
	}
	if _, ok := m.offered[m.state.DatasetID]; ok {
		m.mu.Unlock()
		return
	}
	m.apply(ctx, FieldDataset, func(s *Snapshot) { s.DatasetID = "" })
}

// Offered reports whether id is currently selectable.
func (m *Manager) Offered(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.offered[id]
	return ok
}

// SetDataset selects id. Ids not offered by the registry are rejected.
func (m *Manager) SetDataset(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.offered[id]; !ok || id == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	m.apply(ctx, FieldDataset, func(s *Snapshot) { s.DatasetID = id })
	return nil
}

// ClearDataset makes the selection absent.
func (m *Manager) ClearDataset(ctx context.Context) {
	m.mu.Lock()
	m.apply(ctx, FieldDataset, func(s *Snapshot) { s.DatasetID = "" })
}

// SetYear sets the competency year. Any integer is accepted.
func (m *Manager) SetYear(ctx context.Context, year int) {
	m.mu.Lock()
	m.apply(ctx, FieldYear, func(s *Snapshot) { s.Filter = s.Filter.WithYear(year) })
}

// ClearYear removes the year.
func (m *Manager) ClearYear(ctx context.Context) {
	m.mu.Lock()
	m.apply(ctx, FieldYear, func(s *Snapshot) { s.Filter = s.Filter.WithoutYear() })
}

// SetMonth sets the competency month, 1 through 12.
func (m *Manager) SetMonth(ctx context.Context, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	m.mu.Lock()
	m.apply(ctx, FieldMonth, func(s *Snapshot) { s.Filter = s.Filter.WithMonth(month) })
	return nil
}

// ClearMonth removes the month.
func (m *Manager) ClearMonth(ctx context.Context) {
	m.mu.Lock()
	m.apply(ctx, FieldMonth, func(s *Snapshot) { s.Filter = s.Filter.WithoutMonth() })
}

// apply mutates the state and notifies. It must be called with m.mu held and
// releases it before any listener runs.
func (m *Manager) apply(ctx context.Context, field Field, mutate func(*Snapshot)) {
	prev := m.state
	next := prev
	mutate(&next)
	if next == prev {
		m.mu.Unlock()
		return
	}
	m.state = next
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	c := Change{Field: field, Previous: prev, Current: next}
	for _, s := range subs {
		s.fn(ctx, c)
	}
}
