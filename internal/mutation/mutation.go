// Package mutation wraps row writes against a backend and records the outcome of the
// most recent call.
package mutation

import (
	"context"
	"sync"

	"github.com/Skotchmaster/partsdesk/internal/backend"
)

// State is a snapshot of the mutator. Error holds the description of the most recent
// failure and is cleared when a new call starts.
type State struct {
	Loading bool
	Error   string
	Data    *backend.Result
}

type Mutator struct {
	b backend.Backend

	mu       sync.Mutex
	inflight int
	state    State
}

func New(b backend.Backend) *Mutator {
	return &Mutator{b: b}
}

func (m *Mutator) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Loading = m.inflight > 0
	return s
}

func (m *Mutator) Insert(ctx context.Context, table string, fields any) (backend.Result, error) {
	return m.run(func() (backend.Result, error) {
		return m.b.Insert(ctx, table, fields)
	})
}

func (m *Mutator) Update(ctx context.Context, table string, id uint, fields any) (backend.Result, error) {
	return m.run(func() (backend.Result, error) {
		return m.b.Update(ctx, table, id, fields)
	})
}

func (m *Mutator) Upsert(ctx context.Context, table string, id uint, fields any) (backend.Result, error) {
	return m.run(func() (backend.Result, error) {
		return m.b.Upsert(ctx, table, id, fields)
	})
}

func (m *Mutator) Delete(ctx context.Context, table string, id uint) (backend.Result, error) {
	return m.run(func() (backend.Result, error) {
		return m.b.Delete(ctx, table, id)
	})
}

// Atomic runs fn inside a transaction when the backend supports one. Otherwise fn
// runs against m directly and earlier writes stay committed if a later one fails.
// Either way, once fn succeeds State().Data holds the result of its last write.
func (m *Mutator) Atomic(ctx context.Context, fn func(ctx context.Context, m *Mutator) error) error {
	tx, ok := m.b.(backend.Transactor)
	if !ok {
		return fn(ctx, m)
	}

	m.begin()
	var inner *Mutator
	err := tx.Atomic(ctx, func(ctx context.Context, b backend.Backend) error {
		inner = New(b)
		return fn(ctx, inner)
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	if err != nil {
		m.state.Error = err.Error()
		return err
	}
	if inner != nil {
		if last := inner.State().Data; last != nil {
			m.state.Data = last
		}
	}
	return nil
}

// Transactional reports whether Atomic gives all-or-nothing semantics.
func (m *Mutator) Transactional() bool {
	_, ok := m.b.(backend.Transactor)
	return ok
}

func (m *Mutator) begin() {
	m.mu.Lock()
	m.inflight++
	m.state.Error = ""
	m.mu.Unlock()
}

func (m *Mutator) run(call func() (backend.Result, error)) (backend.Result, error) {
	m.begin()
	res, err := call()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	if err != nil {
		m.state.Error = err.Error()
		return backend.Result{}, err
	}
	m.state.Data = &res
	return res, nil
}
