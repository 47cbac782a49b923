package orderentry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/mutation"
)

const (
	OrdersTable     = "sales_orders"
	OrderItemsTable = "sales_order_items"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidSaleType = errors.New("invalid sale type")
)

// PartialOrderError reports an order header that was written without its lines.
type PartialOrderError struct {
	OrderID uint
	Err     error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %d saved without items: %v", e.OrderID, e.Err)
}

func (e *PartialOrderError) Unwrap() error {
	return e.Err
}

type SubmitRequest struct {
	OrderDate time.Time `json:"order_date"`
	SaleType  string    `json:"sale_type"`
}

type Receipt struct {
	OrderID uint        `json:"order_id"`
	Lines   int         `json:"lines"`
	Totals  cart.Totals `json:"totals"`
}

type Order struct {
	CustomerID *uint
	Lines      []cart.Line
	SubmitRequest
}

type orderHeader struct {
	OrderDate   time.Time       `json:"order_date"`
	CustomerID  *uint           `json:"customer_id"`
	Status      string          `json:"status"`
	SaleType    string          `json:"sale_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type orderLine struct {
	SalesOrderID uint            `json:"sales_order_id"`
	ProductID    uint            `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func normalizeSaleType(s string) (string, error) {
	switch s {
	case "":
		return models.SaleTypeCash, nil
	case models.SaleTypeCash, models.SaleTypeLaybye, models.SaleTypeCredit:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSaleType, s)
	}
}

// PlaceOrder writes the order header and then its lines, which reference the
// header's generated id. Over a transactional backend both writes commit together;
// otherwise a failed line write leaves the header behind and is reported as
// *PartialOrderError.
func PlaceOrder(ctx context.Context, m *mutation.Mutator, o Order) (Receipt, error) {
	if len(o.Lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	saleType, err := normalizeSaleType(o.SaleType)
	if err != nil {
		return Receipt{}, err
	}
	date := o.OrderDate
	if date.IsZero() {
		date = time.Now().UTC()
	}

	totals := cart.Compute(o.Lines)
	atomic := m.Transactional()

	var orderID uint
	err = m.Atomic(ctx, func(ctx context.Context, tx *mutation.Mutator) error {
		res, err := tx.Insert(ctx, OrdersTable, orderHeader{
			OrderDate:   date,
			CustomerID:  o.CustomerID,
			Status:      models.OrderStatusPending,
			SaleType:    saleType,
			TotalAmount: totals.Total,
		})
		if err != nil {
			return fmt.Errorf("insert order header: %w", err)
		}

		id, err := firstID(res.Data)
		if err != nil {
			return fmt.Errorf("insert order header: %w", err)
		}

		items := make([]orderLine, 0, len(o.Lines))
		for _, l := range o.Lines {
			items = append(items, orderLine{
				SalesOrderID: id,
				ProductID:    l.Item.ID,
				Quantity:     l.Quantity,
				UnitPrice:    l.Item.SellingPrice,
			})
		}
		if _, err := tx.Insert(ctx, OrderItemsTable, items); err != nil {
			err = fmt.Errorf("insert order items: %w", err)
			if !atomic {
				return &PartialOrderError{OrderID: id, Err: err}
			}
			return err
		}

		orderID = id
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{OrderID: orderID, Lines: len(o.Lines), Totals: totals}, nil
}

func firstID(data json.RawMessage) (uint, error) {
	var rows []struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("decode inserted rows: %w", err)
	}
	if len(rows) == 0 || rows[0].ID == 0 {
		return 0, fmt.Errorf("%w: no id returned", backend.ErrValidation)
	}
	return rows[0].ID, nil
}
