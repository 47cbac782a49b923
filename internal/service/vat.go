package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/mutation"
	"github.com/Skotchmaster/partsdesk/internal/query"
)

const VATTable = "vat_rates"

var hundred = decimal.NewFromInt(100)

// VATService manages the reference list of VAT rates. Order totals do not read it.
type VATService struct {
	Backend backend.Backend
}

type VATInput struct {
	Name       *string          `json:"name"`
	Percentage *decimal.Decimal `json:"percentage"`
}

func (in VATInput) fields() (map[string]any, error) {
	f := make(map[string]any, 2)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		f["name"] = name
	}
	if in.Percentage != nil {
		p := *in.Percentage
		if p.IsNegative() || p.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: percentage must be within 0..100", ErrValidation)
		}
		f["percentage"] = p
	}
	return f, nil
}

func (s *VATService) List(ctx context.Context, from, to int) ([]models.VATRate, error) {
	q := query.New[models.VATRate](s.Backend, query.Options{Table: VATTable, Order: "name.asc", From: from, To: to})
	return q.Search(ctx, "")
}

func (s *VATService) Create(ctx context.Context, in VATInput) (*models.VATRate, error) {
	if in.Name == nil || in.Percentage == nil {
		return nil, fmt.Errorf("%w: name and percentage are required", ErrValidation)
	}
	f, err := in.fields()
	if err != nil {
		return nil, err
	}

	res, err := mutation.New(s.Backend).Insert(ctx, VATTable, f)
	if err != nil {
		return nil, err
	}
	var rows []models.VATRate
	if err := json.Unmarshal(res.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode created vat rate: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("insert returned no rows")
	}
	return &rows[0], nil
}

func (s *VATService) Update(ctx context.Context, id uint, in VATInput) error {
	f, err := in.fields()
	if err != nil {
		return err
	}
	if len(f) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	_, err = mutation.New(s.Backend).Update(ctx, VATTable, id, f)
	return notFound(err)
}

func (s *VATService) Delete(ctx context.Context, id uint) error {
	_, err := mutation.New(s.Backend).Delete(ctx, VATTable, id)
	return notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
