// Package query fetches a fixed window of rows from a backend table, optionally
// narrowed by a filter expression, and keeps the latest result.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Skotchmaster/partsdesk/internal/backend"
)

type Options struct {
	Table  string
	Select string
	Order  string
	From   int
	To     int
}

// DefaultTo matches a first page of eleven rows.
const DefaultTo = 10

type Query[T any] struct {
	b    backend.Backend
	opts Options

	mu      sync.Mutex
	seq     uint64
	loading int
	filter  string
	data    []T
	err     error
}

func New[T any](b backend.Backend, opts Options) *Query[T] {
	if opts.From == 0 && opts.To == 0 {
		opts.To = DefaultTo
	}
	return &Query[T]{b: b, opts: opts}
}

// Search fetches rows matching filter. An empty filter fetches the unfiltered window.
// A result is only published if no later Search started meanwhile; a superseded call
// still returns its own rows to the caller.
func (q *Query[T]) Search(ctx context.Context, filter string) ([]T, error) {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	q.loading++
	q.filter = filter
	q.mu.Unlock()

	rows, err := q.fetch(ctx, filter)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.loading--
	if seq == q.seq {
		q.err = err
		if err == nil {
			q.data = rows
		}
	}
	return rows, err
}

func (q *Query[T]) Refresh(ctx context.Context) ([]T, error) {
	q.mu.Lock()
	filter := q.filter
	q.mu.Unlock()
	return q.Search(ctx, filter)
}

// Reset drops the published rows, error and filter. A Search still in flight will
// not publish its result.
func (q *Query[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.filter = ""
	q.data = nil
	q.err = nil
}

func (q *Query[T]) fetch(ctx context.Context, filter string) ([]T, error) {
	raw, err := q.b.Query(ctx, q.opts.Table, backend.QueryOptions{
		Select: q.opts.Select,
		Filter: filter,
		Order:  q.opts.Order,
		Range:  backend.Range{From: q.opts.From, To: q.opts.To},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.opts.Table, err)
	}

	rows := make([]T, 0)
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", q.opts.Table, err)
	}
	return rows, nil
}

func (q *Query[T]) Data() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.data))
	copy(out, q.data)
	return out
}

func (q *Query[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *Query[T]) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading > 0
}

func (q *Query[T]) Filter() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filter
}
