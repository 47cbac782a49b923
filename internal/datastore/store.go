// Package datastore implements the table-keyed backend contract over gorm.
package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
)

// MaxRows caps a single query page.
const MaxRows = 1000

type Store struct {
	db  *gorm.DB
	reg *Registry
}

var (
	_ backend.Backend    = (*Store)(nil)
	_ backend.Transactor = (*Store)(nil)
)

func New(db *gorm.DB) (*Store, error) {
	reg, err := NewRegistry(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, reg: reg}, nil
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(models.All()...)
}

func (s *Store) Tables() []string {
	return s.reg.Tables()
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, b backend.Backend) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, reg: s.reg})
	})
}

func (s *Store) writable(name string) (*table, error) {
	t, err := s.reg.lookup(name)
	if err != nil {
		return nil, err
	}
	if t.readOnly {
		return nil, fmt.Errorf("%w: %s", backend.ErrReadOnly, name)
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, name string, fields any) (backend.Result, error) {
	t, err := s.writable(name)
	if err != nil {
		return backend.Result{}, err
	}

	data, many, err := payload(t, fields, false)
	if err != nil {
		return backend.Result{}, err
	}

	var rows any
	if many {
		rows = t.newSlice()
	} else {
		rows = t.newOne()
	}
	if err := json.Unmarshal(data, rows); err != nil {
		return backend.Result{}, fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	if err := validate(rows); err != nil {
		return backend.Result{}, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rows).Error; err != nil {
		return backend.Result{}, translate(fmt.Errorf("insert %s: %w", name, err))
	}

	if !many {
		rows = []any{rows}
	}
	out, err := json.Marshal(rows)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(http.StatusCreated, out), nil
}

func (s *Store) Update(ctx context.Context, name string, id uint, fields any) (backend.Result, error) {
	t, err := s.writable(name)
	if err != nil {
		return backend.Result{}, err
	}

	data, many, err := payload(t, fields, true)
	if err != nil {
		return backend.Result{}, err
	}
	if many {
		return backend.Result{}, fmt.Errorf("%w: update takes a single object", backend.ErrValidation)
	}

	keys, err := objectKeys(data)
	if err != nil {
		return backend.Result{}, err
	}
	if len(keys) == 0 {
		return backend.Result{}, fmt.Errorf("%w: nothing to update", backend.ErrValidation)
	}
	cols := make([]string, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, t.columns[k].Name)
	}

	row := t.newOne()
	if err := json.Unmarshal(data, row); err != nil {
		return backend.Result{}, fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	if _, ok := row.(models.Validator); ok {
		if err := s.validatePatch(ctx, t, id, data); err != nil {
			return backend.Result{}, err
		}
	}

	res := s.db.WithContext(ctx).
		Model(row).
		Omit(clause.Associations).
		Where(t.pkEq(id)).
		Select(cols).
		Updates(row)
	if res.Error != nil {
		return backend.Result{}, translate(fmt.Errorf("update %s: %w", name, res.Error))
	}
	if res.RowsAffected == 0 {
		return backend.Result{}, fmt.Errorf("%w: %s %d", backend.ErrNotFound, name, id)
	}
	return backend.NewResult(http.StatusNoContent, nil), nil
}

// Upsert writes the full row under id, inserting it when absent.
func (s *Store) Upsert(ctx context.Context, name string, id uint, fields any) (backend.Result, error) {
	t, err := s.writable(name)
	if err != nil {
		return backend.Result{}, err
	}

	data, many, err := payload(t, fields, false)
	if err != nil {
		return backend.Result{}, err
	}
	if many {
		return backend.Result{}, fmt.Errorf("%w: upsert takes a single object", backend.ErrValidation)
	}

	row := t.newOne()
	if err := json.Unmarshal(data, row); err != nil {
		return backend.Result{}, fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	if err := validate(row); err != nil {
		return backend.Result{}, err
	}
	pk := t.primaryKey()
	if err := pk.Set(ctx, reflect.ValueOf(row).Elem(), id); err != nil {
		return backend.Result{}, err
	}

	err = s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: pk.DBName}},
			UpdateAll: true,
		}).
		Create(row).Error
	if err != nil {
		return backend.Result{}, translate(fmt.Errorf("upsert %s: %w", name, err))
	}

	out, err := json.Marshal([]any{row})
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(http.StatusOK, out), nil
}

// validatePatch applies data over the stored row and checks the result, so a
// partial update cannot leave a row its model would reject.
func (s *Store) validatePatch(ctx context.Context, t *table, id uint, data []byte) error {
	current := t.newOne()
	err := s.db.WithContext(ctx).Where(t.pkEq(id)).Take(current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", backend.ErrNotFound, t.name, id)
	}
	if err != nil {
		return translate(err)
	}
	if err := json.Unmarshal(data, current); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	return validate(current)
}

// validate runs model rules over a decoded row or slice of rows.
func validate(rows any) error {
	v := reflect.Indirect(reflect.ValueOf(rows))
	if v.Kind() != reflect.Slice {
		return validateRow(rows)
	}
	for i := 0; i < v.Len(); i++ {
		if err := validateRow(v.Index(i).Addr().Interface()); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func validateRow(row any) error {
	m, ok := row.(models.Validator)
	if !ok {
		return nil
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string, id uint) (backend.Result, error) {
	t, err := s.writable(name)
	if err != nil {
		return backend.Result{}, err
	}

	res := s.db.WithContext(ctx).Where(t.pkEq(id)).Delete(t.newOne())
	if res.Error != nil {
		return backend.Result{}, translate(fmt.Errorf("delete %s: %w", name, res.Error))
	}
	if res.RowsAffected == 0 {
		return backend.Result{}, fmt.Errorf("%w: %s %d", backend.ErrNotFound, name, id)
	}
	return backend.NewResult(http.StatusNoContent, nil), nil
}

func (s *Store) Query(ctx context.Context, name string, opts backend.QueryOptions) (json.RawMessage, error) {
	t, err := s.reg.lookup(name)
	if err != nil {
		return nil, err
	}

	parsed, err := querylang.ParseSelect(opts.Select)
	if err != nil {
		return nil, err
	}
	sel, preloads, err := s.reg.normalize(t, parsed)
	if err != nil {
		return nil, err
	}

	terms, err := querylang.ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	where, args, err := querylang.SQL(terms, t.resolve)
	if err != nil {
		return nil, err
	}

	order, err := t.orderBy(opts.Order)
	if err != nil {
		return nil, err
	}

	limit := opts.Range.Limit()
	if limit == 0 {
		return json.RawMessage("[]"), nil
	}
	if limit > MaxRows {
		limit = MaxRows
	}

	q := s.db.WithContext(ctx).Model(t.newOne())
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if where != "" {
		q = q.Where(where, args...)
	}

	rows := t.newSlice()
	if err := q.Order(order).Offset(opts.Range.From).Limit(limit).Find(rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	if reflect.ValueOf(rows).Elem().Len() == 0 {
		return json.RawMessage("[]"), nil
	}

	out, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	if sel.All && len(sel.Embeds) == 0 {
		return out, nil
	}

	var generic []map[string]any
	if err := json.Unmarshal(out, &generic); err != nil {
		return nil, err
	}
	projected := make([]map[string]any, len(generic))
	for i, row := range generic {
		projected[i] = sel.Project(row)
	}
	return json.Marshal(projected)
}

func (t *table) pkEq(id uint) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: t.primaryKey().DBName}, Value: id}
}

// orderBy parses `col` or `col.asc|desc`, comma separated. Empty orders by primary key.
func (t *table) orderBy(expr string) (clause.OrderBy, error) {
	if strings.TrimSpace(expr) == "" {
		return clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: t.primaryKey().DBName}}}}, nil
	}

	var ob clause.OrderBy
	for _, part := range strings.Split(expr, ",") {
		name, dir, _ := strings.Cut(strings.TrimSpace(part), ".")
		col, err := t.resolve(name)
		if err != nil {
			return clause.OrderBy{}, err
		}
		var desc bool
		switch dir {
		case "", "asc":
		case "desc":
			desc = true
		default:
			return clause.OrderBy{}, fmt.Errorf("%w: order direction %q", querylang.ErrSyntax, dir)
		}
		ob.Columns = append(ob.Columns, clause.OrderByColumn{Column: clause.Column{Name: col.Name}, Desc: desc})
	}
	return ob, nil
}

// payload re-encodes fields to JSON and checks every key names a column of t.
func payload(t *table, fields any, forbidPK bool) ([]byte, bool, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	data = bytes.TrimSpace(data)

	var objects []map[string]json.RawMessage
	many := len(data) > 0 && data[0] == '['
	switch {
	case many:
		if err := json.Unmarshal(data, &objects); err != nil {
			return nil, false, fmt.Errorf("%w: %v", backend.ErrValidation, err)
		}
		if len(objects) == 0 {
			return nil, false, fmt.Errorf("%w: no rows", backend.ErrValidation)
		}
	case len(data) > 0 && data[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, false, fmt.Errorf("%w: %v", backend.ErrValidation, err)
		}
		objects = append(objects, obj)
	default:
		return nil, false, fmt.Errorf("%w: expected an object or an array of objects", backend.ErrValidation)
	}

	pk := t.jsonKey[t.primaryKey().DBName]
	for _, obj := range objects {
		for k := range obj {
			if key, ok := t.jsonKey[k]; !ok || key != k {
				return nil, false, fmt.Errorf("%w: %s.%s", backend.ErrUnknownColumn, t.name, k)
			}
			if forbidPK && k == pk {
				return nil, false, fmt.Errorf("%w: %s is immutable", backend.ErrValidation, k)
			}
		}
	}
	return data, many, nil
}

func objectKeys(data []byte) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrValidation, err)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %w", backend.ErrConflict, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", backend.ErrNotFound, err)
	}
	return err
}
