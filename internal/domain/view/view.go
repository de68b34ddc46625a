// Package view tracks which analysis view is active.
package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/lrgtech/peopleanalytics/internal/domain/model"
)

// Change describes a switch between views.
type Change struct {
	Previous model.ViewKind
	Current  model.ViewKind
}

// Listener receives changes synchronously, after the controller lock is released.
type Listener func(ctx context.Context, c Change)

// Controller holds the active view. Overview is active on creation.
type Controller struct {
	mu     sync.Mutex
	active model.ViewKind
	subs   map[int]Listener
	order  []int
	nextID int
}

// NewController returns a controller with Overview active.
func NewController() *Controller {
	return &Controller{active: model.ViewOverview, subs: make(map[int]Listener)}
}

// Active returns the active view.
func (c *Controller) Active() model.ViewKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Select makes kind active. Unknown kinds are rejected; selecting the active
// view publishes nothing.
func (c *Controller) Select(ctx context.Context, kind model.ViewKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownView, kind)
	}

	c.mu.Lock()
	prev := c.active
	if prev == kind {
		c.mu.Unlock()
		return nil
	}
	c.active = kind
	listeners := make([]Listener, 0, len(c.order))
	for _, id := range c.order {
		listeners = append(listeners, c.subs[id])
	}
	c.mu.Unlock()

	ch := Change{Previous: prev, Current: kind}
	for _, fn := range listeners {
		fn(ctx, ch)
	}
	return nil
}

// Subscribe registers fn and returns a function that removes it.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	}
}
