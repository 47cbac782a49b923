package orderentry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Skotchmaster/partsdesk/internal/debounce"
	"github.com/Skotchmaster/partsdesk/internal/query"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
)

// LiveSearch turns keystrokes into debounced searches over a fixed set of columns.
// A newer search cancels the one still in flight, and results of a cancelled search
// are never delivered.
type LiveSearch[T any] struct {
	q        *query.Query[T]
	columns  []string
	d        *debounce.Debouncer
	onResult func([]T, error)
	parent   context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewLiveSearch[T any](parent context.Context, q *query.Query[T], delay time.Duration, onResult func([]T, error), columns ...string) *LiveSearch[T] {
	return &LiveSearch[T]{
		q:        q,
		columns:  columns,
		d:        debounce.New(delay),
		onResult: onResult,
		parent:   parent,
	}
}

// Filter renders the OR-ilike expression for text. Blank text matches nothing and
// yields an empty expression.
func (l *LiveSearch[T]) Filter(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return querylang.SearchAny(text, l.columns...)
}

func (l *LiveSearch[T]) Type(text string) {
	l.d.Trigger(func() { l.run(text) })
}

// Search runs immediately, bypassing the debounce delay.
func (l *LiveSearch[T]) Search(text string) ([]T, error) {
	return l.run(text)
}

func (l *LiveSearch[T]) run(text string) ([]T, error) {
	ctx, cancel := context.WithCancel(l.parent)
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.mu.Unlock()

	filter := l.Filter(text)
	if filter == "" {
		l.q.Reset()
		l.deliver(ctx, nil, nil)
		return nil, nil
	}

	rows, err := l.q.Search(ctx, filter)
	l.deliver(ctx, rows, err)
	return rows, err
}

func (l *LiveSearch[T]) deliver(ctx context.Context, rows []T, err error) {
	if ctx.Err() != nil || l.onResult == nil {
		return
	}
	l.onResult(rows, err)
}

func (l *LiveSearch[T]) Close() {
	l.d.Stop()
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
}
