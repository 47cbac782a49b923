package datastore

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
)

type table struct {
	name     string
	typ      reflect.Type
	schema   *schema.Schema
	readOnly bool

	// columns is keyed by both the JSON name and the database name
	columns map[string]querylang.Column
	jsonKey map[string]string
	embeds  map[string]*schema.Relationship
}

func (t *table) newOne() any {
	return reflect.New(t.typ).Interface()
}

func (t *table) newSlice() any {
	return reflect.New(reflect.SliceOf(t.typ)).Interface()
}

func (t *table) resolve(name string) (querylang.Column, error) {
	c, ok := t.columns[name]
	if !ok {
		return querylang.Column{}, fmt.Errorf("%w: %s.%s", backend.ErrUnknownColumn, t.name, name)
	}
	return c, nil
}

func (t *table) primaryKey() *schema.Field {
	return t.schema.PrioritizedPrimaryField
}

type Registry struct {
	mu     sync.RWMutex
	tables map[string]*table
	cache  sync.Map
	namer  schema.Namer
}

// NewRegistry registers every domain model. The users table is read-only through
// the generic table contract; accounts are managed by the user service.
func NewRegistry(db *gorm.DB) (*Registry, error) {
	r := &Registry{tables: make(map[string]*table), namer: db.NamingStrategy}
	for _, m := range models.All() {
		_, readOnly := m.(*models.User)
		if err := r.Register(m, readOnly); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(model any, readOnly bool) error {
	sch, err := schema.Parse(model, &r.cache, r.namer)
	if err != nil {
		return fmt.Errorf("parse schema %T: %w", model, err)
	}

	t := &table{
		name:     sch.Table,
		typ:      sch.ModelType,
		schema:   sch,
		readOnly: readOnly,
		columns:  make(map[string]querylang.Column),
		jsonKey:  make(map[string]string),
		embeds:   make(map[string]*schema.Relationship),
	}

	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		key := jsonName(f)
		if key == "-" {
			continue
		}
		col := querylang.Column{Name: f.DBName, Text: f.DataType == schema.String}
		t.columns[key] = col
		t.columns[f.DBName] = col
		t.jsonKey[f.DBName] = key
		t.jsonKey[key] = key
	}

	for _, rel := range sch.Relationships.Relations {
		t.embeds[jsonName(rel.Field)] = rel
	}

	r.mu.Lock()
	r.tables[t.name] = t
	r.mu.Unlock()
	return nil
}

func (r *Registry) lookup(name string) (*table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownTable, name)
	}
	return t, nil
}

func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for name := range r.tables {
		out = append(out, name)
	}
	return out
}

func jsonName(f *schema.Field) string {
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.DBName
	}
	return name
}

// normalize maps a parsed selection onto JSON keys and returns the relations to preload.
func (r *Registry) normalize(t *table, sel querylang.Selection) (querylang.Selection, []string, error) {
	out := querylang.Selection{All: sel.All}
	for _, c := range sel.Columns {
		key, ok := t.jsonKey[c]
		if !ok {
			return querylang.Selection{}, nil, fmt.Errorf("%w: %s.%s", backend.ErrUnknownColumn, t.name, c)
		}
		out.Columns = append(out.Columns, key)
	}

	var preloads []string
	for _, e := range sel.Embeds {
		rel, ok := t.embeds[e.Name]
		if !ok {
			return querylang.Selection{}, nil, fmt.Errorf("%w: %s has no relation %s", backend.ErrUnknownColumn, t.name, e.Name)
		}
		if len(e.Selection.Embeds) > 0 {
			return querylang.Selection{}, nil, fmt.Errorf("%w: nested embeds under %s", backend.ErrValidation, e.Name)
		}

		inner := querylang.Selection{All: e.Selection.All}
		if related, err := r.lookup(rel.FieldSchema.Table); err == nil {
			for _, c := range e.Selection.Columns {
				key, ok := related.jsonKey[c]
				if !ok {
					return querylang.Selection{}, nil, fmt.Errorf("%w: %s.%s", backend.ErrUnknownColumn, related.name, c)
				}
				inner.Columns = append(inner.Columns, key)
			}
		} else {
			inner.Columns = e.Selection.Columns
		}

		out.Embeds = append(out.Embeds, querylang.Embed{Name: e.Name, Selection: inner})
		preloads = append(preloads, rel.Name)
	}
	return out, preloads, nil
}
