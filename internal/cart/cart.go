// Package cart holds the lines of an order being entered and computes its totals.
package cart

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/partsdesk/internal/models"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrOutOfStock    = errors.New("item is out of stock")
)

// TaxRate is applied to the subtotal of every order.
var TaxRate = decimal.RequireFromString("0.15")

type Line struct {
	Item     models.StockItem `json:"item"`
	Quantity int              `json:"quantity"`
}

func (l Line) Amount() decimal.Decimal {
	return l.Item.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Cart keeps at most one line per stock item, in selection order. The quantity of a
// line always stays within 1..quantity_on_hand of its item snapshot.
type Cart struct {
	mu    sync.Mutex
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// FromLines rebuilds a cart from stored lines, re-applying the quantity bounds.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		_ = c.Select(l.Item, l.Quantity)
	}
	return c
}

// Select adds item with amount, or overwrites the existing line for it. The amount is
// clamped to the stock on hand.
func (c *Cart) Select(item models.StockItem, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if item.QuantityOnHand < 1 {
		return ErrOutOfStock
	}
	amount = min(amount, item.QuantityOnHand)

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(item.ID); i >= 0 {
		c.lines[i] = Line{Item: item, Quantity: amount}
		return nil
	}
	c.lines = append(c.lines, Line{Item: item, Quantity: amount})
	return nil
}

// Increment adds one unit unless the line is already at the stock on hand.
func (c *Cart) Increment(id uint) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return 0, false
	}
	l := &c.lines[i]
	l.Quantity = min(l.Quantity+1, l.Item.QuantityOnHand)
	return l.Quantity, true
}

// Decrement removes one unit; the line is dropped when it reaches zero.
func (c *Cart) Decrement(id uint) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return 0, false
	}
	l := &c.lines[i]
	l.Quantity = min(l.Quantity-1, l.Item.QuantityOnHand)
	if l.Quantity <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return 0, true
	}
	return l.Quantity, true
}

func (c *Cart) Remove(id uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) Empty() bool {
	return c.Len() == 0
}

func (c *Cart) Totals() Totals {
	return Compute(c.Lines())
}

// Compute derives subtotal, tax and grand total from lines.
func Compute(lines []Line) Totals {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.Amount())
	}
	return Totals{
		Subtotal: sub,
		Tax:      sub.Mul(TaxRate),
		Total:    sub.Mul(decimal.NewFromInt(1).Add(TaxRate)),
	}
}

func (c *Cart) index(id uint) int {
	for i, l := range c.lines {
		if l.Item.ID == id {
			return i
		}
	}
	return -1
}
