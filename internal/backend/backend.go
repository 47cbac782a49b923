// Package backend defines the table-keyed data contract shared by the in-process
// store and the remote HTTP client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotFound      = errors.New("not found")
	ErrReadOnly      = errors.New("table is read-only")
	ErrValidation    = errors.New("validation")
	ErrConflict      = errors.New("constraint violation")
)

// Result describes a completed write. Data holds the affected rows as a JSON array
// when the operation returns rows.
type Result struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func NewResult(status int, data json.RawMessage) Result {
	return Result{Status: status, StatusText: http.StatusText(status), Data: data}
}

// Range is an inclusive row window, From and To are zero-based offsets.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) Limit() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

type QueryOptions struct {
	Select string
	Filter string
	Order  string
	Range  Range
}

type Backend interface {
	Insert(ctx context.Context, table string, fields any) (Result, error)
	Update(ctx context.Context, table string, id uint, fields any) (Result, error)
	Upsert(ctx context.Context, table string, id uint, fields any) (Result, error)
	Delete(ctx context.Context, table string, id uint) (Result, error)
	Query(ctx context.Context, table string, opts QueryOptions) (json.RawMessage, error)
}

// Transactor is implemented by backends that can run several writes atomically.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, b Backend) error) error
}
