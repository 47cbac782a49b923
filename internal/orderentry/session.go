// Package orderentry drives order capture: live stock and customer search, the cart
// and the selected customer, and the two-step order submission.
package orderentry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/debounce"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/mutation"
	"github.com/Skotchmaster/partsdesk/internal/query"
)

const (
	StockTable     = "stock"
	CustomersTable = "customers"

	StockSelect = "id,OEM_number,VIN,name,description,engine_number,manufacturer,model_range," +
		"selling_price,quantity_on_hand,supplier(name,email),car_model(make,model)"
)

var (
	StockColumns    = []string{"name", "OEM_number", "engine_number", "manufacturer", "VIN"}
	CustomerColumns = []string{"name", "company_name"}
)

var ErrUnknownItem = errors.New("item is not among the search results")

type Config struct {
	// Delay defaults to debounce.SearchDelay.
	Delay time.Duration
	// To is the last row index of a search page; zero means query.DefaultTo.
	To          int
	OnStock     func([]models.StockItem, error)
	OnCustomers func([]models.Customer, error)
}

type Session struct {
	mut       *mutation.Mutator
	cart      *cart.Cart
	stock     *query.Query[models.StockItem]
	customers *query.Query[models.Customer]
	stockLive *LiveSearch[models.StockItem]
	custLive  *LiveSearch[models.Customer]

	mu       sync.Mutex
	customer *models.Customer
}

// NewSession starts an order-entry session. Searches run under ctx; Close stops any
// pending or in-flight search.
func NewSession(ctx context.Context, b backend.Backend, cfg Config) *Session {
	if cfg.Delay <= 0 {
		cfg.Delay = debounce.SearchDelay
	}
	to := cfg.To
	if to <= 0 {
		to = query.DefaultTo
	}

	s := &Session{
		mut:       mutation.New(b),
		cart:      cart.New(),
		stock:     query.New[models.StockItem](b, query.Options{Table: StockTable, Select: StockSelect, To: to}),
		customers: query.New[models.Customer](b, query.Options{Table: CustomersTable, To: to}),
	}
	s.stockLive = NewLiveSearch(ctx, s.stock, cfg.Delay, cfg.OnStock, StockColumns...)
	s.custLive = NewLiveSearch(ctx, s.customers, cfg.Delay, cfg.OnCustomers, CustomerColumns...)
	return s
}

// TypeStock schedules a debounced stock search for text.
func (s *Session) TypeStock(text string) {
	s.stockLive.Type(text)
}

func (s *Session) TypeCustomer(text string) {
	s.custLive.Type(text)
}

func (s *Session) SearchStock(text string) ([]models.StockItem, error) {
	return s.stockLive.Search(text)
}

func (s *Session) SearchCustomers(text string) ([]models.Customer, error) {
	return s.custLive.Search(text)
}

func (s *Session) StockResults() []models.StockItem {
	return s.stock.Data()
}

func (s *Session) CustomerResults() []models.Customer {
	return s.customers.Data()
}

func (s *Session) SelectCustomer(c models.Customer) {
	s.mu.Lock()
	s.customer = &c
	s.mu.Unlock()
}

func (s *Session) ClearCustomer() {
	s.mu.Lock()
	s.customer = nil
	s.mu.Unlock()
}

func (s *Session) Customer() (models.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customer == nil {
		return models.Customer{}, false
	}
	return *s.customer, true
}

func (s *Session) SelectItem(item models.StockItem, amount int) error {
	return s.cart.Select(item, amount)
}

// SelectStock picks an item from the latest stock results by id.
func (s *Session) SelectStock(id uint, amount int) error {
	for _, item := range s.stock.Data() {
		if item.ID == id {
			return s.cart.Select(item, amount)
		}
	}
	return ErrUnknownItem
}

func (s *Session) Increment(id uint) (int, bool) {
	return s.cart.Increment(id)
}

func (s *Session) Decrement(id uint) (int, bool) {
	return s.cart.Decrement(id)
}

func (s *Session) Remove(id uint) bool {
	return s.cart.Remove(id)
}

func (s *Session) Lines() []cart.Line {
	return s.cart.Lines()
}

func (s *Session) Totals() cart.Totals {
	return s.cart.Totals()
}

// State exposes the outcome of the latest write.
func (s *Session) State() mutation.State {
	return s.mut.State()
}

// Submit places the order. The cart is cleared only on success so a failed attempt
// can be retried.
func (s *Session) Submit(ctx context.Context, req SubmitRequest) (Receipt, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}

	var customerID *uint
	if c, ok := s.Customer(); ok {
		customerID = &c.ID
	}

	r, err := PlaceOrder(ctx, s.mut, Order{CustomerID: customerID, Lines: lines, SubmitRequest: req})
	if err != nil {
		return Receipt{}, err
	}
	s.cart.Clear()
	return r, nil
}

func (s *Session) Close() {
	s.stockLive.Close()
	s.custLive.Close()
}
