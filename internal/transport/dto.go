package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/partsdesk/internal/orderentry"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

type SetCustomerRequest struct {
	CustomerID uint `json:"customer_id"`
}

type AddItemRequest struct {
	StockID  uint `json:"stock_id"`
	Quantity int  `json:"quantity"`
}

// SubmitOrderRequest accepts order_date as a calendar date or an RFC 3339 timestamp.
type SubmitOrderRequest struct {
	OrderDate string `json:"order_date"`
	SaleType  string `json:"sale_type"`
}

func (r SubmitOrderRequest) ToSubmit() (orderentry.SubmitRequest, error) {
	out := orderentry.SubmitRequest{SaleType: strings.TrimSpace(r.SaleType)}
	if r.OrderDate == "" {
		return out, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, r.OrderDate); err == nil {
			out.OrderDate = t.UTC()
			return out, nil
		}
	}
	return out, fmt.Errorf("order_date %q is not a date", r.OrderDate)
}

type ReindexResponse struct {
	Indexed int `json:"indexed"`
}
