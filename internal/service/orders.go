package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/drafts"
	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/mutation"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	"github.com/Skotchmaster/partsdesk/internal/repo"
)

// OrderService builds orders from drafts held in Redis and places them.
type OrderService struct {
	Repo    *repo.GormRepo
	Backend backend.Backend
	Drafts  *drafts.Store
	Events  events.Publisher
}

type DraftView struct {
	*drafts.Draft
	Totals cart.Totals `json:"totals"`
}

func view(d *drafts.Draft) *DraftView {
	return &DraftView{Draft: d, Totals: cart.Compute(d.Lines)}
}

func (s *OrderService) NewDraft(ctx context.Context, userID uint) (*DraftView, error) {
	d, err := s.Drafts.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	return view(d), nil
}

// load returns the caller's draft; drafts of other users are reported as missing.
func (s *OrderService) load(ctx context.Context, userID uint, id string) (*drafts.Draft, error) {
	d, err := s.Drafts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			return nil, fmt.Errorf("%w: draft %s", ErrNotFound, id)
		}
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("%w: draft %s", ErrNotFound, id)
	}
	return d, nil
}

func (s *OrderService) GetDraft(ctx context.Context, userID uint, id string) (*DraftView, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return view(d), nil
}

func (s *OrderService) DeleteDraft(ctx context.Context, userID uint, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	return s.Drafts.Delete(ctx, id)
}

func (s *OrderService) SetCustomer(ctx context.Context, userID uint, id string, customerID uint) (*DraftView, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	c, err := s.Repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
		}
		return nil, err
	}
	d.Customer = c
	return s.save(ctx, d)
}

// AddItem selects a stock item into the draft using the current stock row.
func (s *OrderService) AddItem(ctx context.Context, userID uint, id string, stockID uint, quantity int) (*DraftView, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	item, err := s.Repo.GetStockItem(ctx, stockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stock item %d", ErrNotFound, stockID)
		}
		return nil, err
	}

	c := d.Cart()
	if err := c.Select(*item, quantity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	d.SetCart(c)
	return s.save(ctx, d)
}

func (s *OrderService) Increment(ctx context.Context, userID uint, id string, stockID uint) (*DraftView, error) {
	return s.adjust(ctx, userID, id, stockID, (*cart.Cart).Increment)
}

func (s *OrderService) Decrement(ctx context.Context, userID uint, id string, stockID uint) (*DraftView, error) {
	return s.adjust(ctx, userID, id, stockID, (*cart.Cart).Decrement)
}

func (s *OrderService) RemoveItem(ctx context.Context, userID uint, id string, stockID uint) (*DraftView, error) {
	return s.adjust(ctx, userID, id, stockID, func(c *cart.Cart, id uint) (int, bool) {
		return 0, c.Remove(id)
	})
}

func (s *OrderService) adjust(ctx context.Context, userID uint, id string, stockID uint, op func(*cart.Cart, uint) (int, bool)) (*DraftView, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	c := d.Cart()
	if _, ok := op(c, stockID); !ok {
		return nil, fmt.Errorf("%w: stock item %d is not in the draft", ErrNotFound, stockID)
	}
	d.SetCart(c)
	return s.save(ctx, d)
}

func (s *OrderService) save(ctx context.Context, d *drafts.Draft) (*DraftView, error) {
	if err := s.Drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	return view(d), nil
}

// Submit places the draft as an order and discards the draft. A failed submission
// keeps the draft so it can be retried.
func (s *OrderService) Submit(ctx context.Context, userID uint, id string, req orderentry.SubmitRequest) (*orderentry.Receipt, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	r, err := orderentry.PlaceOrder(ctx, mutation.New(s.Backend), orderentry.Order{
		CustomerID:    d.CustomerID(),
		Lines:         d.Lines,
		SubmitRequest: req,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Drafts.Delete(ctx, id); err != nil && !errors.Is(err, drafts.ErrNotFound) {
		logging.FromContext(ctx).Warn("draft_cleanup_failed", "draft_id", id, "order_id", r.OrderID, "error", err)
	}

	events.Emit(ctx, s.Events, events.TopicOrders, strconv.FormatUint(uint64(r.OrderID), 10), events.OrderCreated{
		Type:       events.TypeOrderCreated,
		OrderID:    r.OrderID,
		CustomerID: d.CustomerID(),
		UserID:     userID,
		Lines:      r.Lines,
		Total:      r.Totals.Total,
		At:         time.Now().UTC(),
	})
	return &r, nil
}

func (s *OrderService) ListOrders(ctx context.Context, offset, limit int) (int64, []models.SalesOrder, error) {
	return s.Repo.ListOrders(ctx, offset, limit)
}
