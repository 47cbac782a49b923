package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/partsdesk/internal/drafts"
	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/httpserver"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/repo"
	"github.com/Skotchmaster/partsdesk/internal/service"
	"github.com/Skotchmaster/partsdesk/internal/testenv"
	"github.com/Skotchmaster/partsdesk/pkg/tokens"
)

var testSecret = []byte("test-jwt-secret")

type testServer struct {
	t      *testing.T
	e      *echo.Echo
	users  *service.UserService
	events *events.Memory
	stock  *stockSyncs
	seed   testenv.Fixtures
	ready  error
}

type stockSyncs struct {
	mu  sync.Mutex
	ids [][]uint
}

func (s *stockSyncs) SyncStock(_ context.Context, ids ...uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ids)
	return nil
}

func (s *stockSyncs) calls() [][]uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]uint(nil), s.ids...)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, db := testenv.NewStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := repo.New(db)
	ev := &events.Memory{}
	ts := &testServer{t: t, e: echo.New(), events: ev, stock: &stockSyncs{}, seed: testenv.Seed(t, db)}
	ts.users = &service.UserService{Repo: r, JWTSecret: testSecret, Events: ev}

	httpserver.Register(ts.e, &httpserver.Deps{
		Auth:   &httpserver.AuthHTTP{Svc: ts.users},
		Users:  &httpserver.UsersHTTP{Svc: ts.users},
		Tables: &httpserver.TablesHTTP{Backend: store, Events: ev, Stock: ts.stock},
		VAT:    &httpserver.VATHTTP{Svc: &service.VATService{Backend: store}},
		Lookup: &httpserver.LookupHTTP{Svc: &service.LookupService{Repo: r, Backend: store}},
		Orders: &httpserver.OrdersHTTP{Svc: &service.OrderService{
			Repo: r, Backend: store, Drafts: drafts.New(rdb, time.Hour), Events: ev,
		}},
		JWTSecret: testSecret,
		Ready:     func(context.Context) error { return ts.ready },
	})
	return ts
}

// token creates a user with the given role and returns a bearer token for it.
func (ts *testServer) token(username, role string) (string, uint) {
	ts.t.Helper()
	u, err := ts.users.CreateUser(context.Background(), service.CreateUserRequest{
		Username: username, Password: "pw-" + username, Role: role,
	})
	require.NoError(ts.t, err)
	tok, err := tokens.SignAccessToken(u.ID, u.Username, u.Role, time.Now().Add(time.Minute), testSecret)
	require.NoError(ts.t, err)
	return tok, u.ID
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health/ready", "", nil).Code)

	ts.ready = errors.New("redis down")
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/health/ready", "", nil).Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.token("sipho", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "sipho", "password": "pw-sipho"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.NotEmpty(t, resp["access_token"])
	assert.Equal(t, "sipho", resp["username"])
	assert.Equal(t, models.RoleClerk, resp["role"])

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "accessToken" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vat-rates", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "sipho", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "sipho"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/tables/stock", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/tables/stock", "garbage", nil).Code)
}

func TestTablesQuery(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)

	q := url.Values{"select": {"id,name"}, "or": {"name.ilike.%brake%"}, "order": {"id.asc"}}
	rec := ts.do(http.MethodGet, "/api/v1/tables/stock?"+q.Encode(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, "Brake pad set", rows[0]["name"])
	assert.Len(t, rows[0], 2)

	rec = ts.do(http.MethodGet, "/api/v1/tables/stock?"+url.Values{"or": {"name.ilike.%nothing%"}}.Encode(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown table", "/api/v1/tables/nope", http.StatusNotFound},
		{"unknown column", "/api/v1/tables/stock?select=colour", http.StatusBadRequest},
		{"bad filter", "/api/v1/tables/stock?or=name.ilike", http.StatusBadRequest},
		{"bad range", "/api/v1/tables/stock?from=5&to=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, ts.do(http.MethodGet, tt.path, tok, nil).Code)
		})
	}
}

func TestTablesWrites(t *testing.T) {
	ts := newTestServer(t)
	tok, uid := ts.token("clerk", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/tables/customers", tok, map[string]any{"name": "Lindiwe Dube", "company_name": "Dube Autos"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rows := decode[[]models.Customer](t, rec)
	require.Len(t, rows, 1)
	id := strconv.FormatUint(uint64(rows[0].ID), 10)

	rec = ts.do(http.MethodPatch, "/api/v1/tables/customers/"+id, tok, map[string]any{"phone": "0821234567"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Body.String())

	rec = ts.do(http.MethodPut, "/api/v1/tables/customers/"+id, tok, map[string]any{"name": "Lindiwe Dube", "email": "l@dube.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows = decode[[]models.Customer](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "l@dube.example", rows[0].Email)

	rec = ts.do(http.MethodDelete, "/api/v1/tables/customers/"+id, tok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/tables/customers/"+id, tok, nil).Code)

	msgs := ts.events.Messages()
	var changes int
	for _, m := range msgs {
		if m.Topic != events.TopicTables {
			continue
		}
		changes++
		ev, ok := m.Event.(events.RowChanged)
		require.True(t, ok)
		assert.Equal(t, "customers", ev.Table)
		assert.Equal(t, uid, ev.By)
	}
	assert.Equal(t, 4, changes)

	t.Run("read-only users table", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/tables/users", tok, map[string]any{"username": "x"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("invalid json", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/tables/customers", tok, "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown column", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/tables/customers", tok, map[string]any{"name": "A", "colour": "red"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("bad id", func(t *testing.T) {
		rec := ts.do(http.MethodDelete, "/api/v1/tables/customers/abc", tok, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("vat rate rules", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/tables/vat_rates", tok, map[string]any{"name": "", "percentage": 250})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		rec = ts.do(http.MethodPost, "/api/v1/tables/vat_rates", tok, map[string]any{"name": "standard", "percentage": 15})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		vat := decode[[]models.VATRate](t, rec)
		require.Len(t, vat, 1)
		path := "/api/v1/tables/vat_rates/" + strconv.FormatUint(uint64(vat[0].ID), 10)

		assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPatch, path, tok, map[string]any{"percentage": 150}).Code)
		assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, path, tok, map[string]any{"name": "standard", "percentage": -5}).Code)
	})
}

func TestStockWritesSyncIndex(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/tables/customers", tok, map[string]any{"name": "Lindiwe Dube"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, ts.stock.calls(), "other tables leave the index alone")

	rec = ts.do(http.MethodPost, "/api/v1/tables/stock", tok, []map[string]any{
		{"name": "Spark plug", "selling_price": "35.00", "quantity_on_hand": 40},
		{"name": "Fan belt", "selling_price": "120.00"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]models.StockItem](t, rec)
	require.Len(t, created, 2)

	oil := ts.seed.Stock[1].ID
	path := "/api/v1/tables/stock/" + strconv.FormatUint(uint64(oil), 10)
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPatch, path, tok, map[string]any{"quantity_on_hand": 4}).Code)
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, tok, nil).Code)

	assert.Equal(t, [][]uint{{created[0].ID, created[1].ID}, {oil}, {oil}}, ts.stock.calls())

	// a rejected write does not touch the index
	ts.do(http.MethodPatch, "/api/v1/tables/stock/9999", tok, map[string]any{"name": "ghost"})
	assert.Len(t, ts.stock.calls(), 3)
}

func TestStockAndCustomerSearch(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)

	rec := ts.do(http.MethodGet, "/api/v1/stock/search?q=bp-1001", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := decode[[]models.StockItem](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, ts.seed.Stock[0].ID, items[0].ID)
	require.NotNil(t, items[0].Supplier)
	assert.Equal(t, "Bosch SA", items[0].Supplier.Name)

	rec = ts.do(http.MethodGet, "/api/v1/customers/search?q=botha", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customers := decode[[]models.Customer](t, rec)
	require.Len(t, customers, 1)
	assert.Equal(t, "Anna Botha", customers[0].Name)
}

func TestFullTextDisabled(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)
	admin, _ := ts.token("boss", models.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/stock/fulltext", tok, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/api/v1/stock/fulltext?q=brake", tok, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/v1/stock/reindex", tok, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/api/v1/stock/reindex", admin, nil).Code)
}

func TestDraftOrderFlow(t *testing.T) {
	ts := newTestServer(t)
	tok, uid := ts.token("clerk", models.RoleClerk)
	other, _ := ts.token("other", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/drafts", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draft := decode[map[string]any](t, rec)
	id, _ := draft["id"].(string)
	require.NotEmpty(t, id)
	base := "/api/v1/drafts/" + id

	// drafts are private to their owner
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, base, other, nil).Code)

	// empty cart cannot be submitted
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, base+"/submit", tok, map[string]any{}).Code)

	pads := ts.seed.Stock[0]
	filter := ts.seed.Stock[1]
	disc := ts.seed.Stock[2]

	rec = ts.do(http.MethodPut, base+"/customer", tok, map[string]any{"customer_id": ts.seed.Customers[0].ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, base+"/items", tok, map[string]any{"stock_id": pads.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, base+"/items", tok, map[string]any{"stock_id": filter.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, base+"/items", tok, map[string]any{"stock_id": disc.ID, "quantity": 1}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, base+"/items", tok, map[string]any{"stock_id": 9999, "quantity": 1}).Code)

	// on-hand is 3: 2 -> 3 -> 3
	path := base + "/items/" + strconv.FormatUint(uint64(pads.ID), 10)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, path+"/increment", tok, nil).Code)
	rec = ts.do(http.MethodPost, path+"/increment", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Lines []struct {
			Item     models.StockItem `json:"item"`
			Quantity int              `json:"quantity"`
		} `json:"lines"`
		Totals struct {
			Subtotal string `json:"subtotal"`
			Tax      string `json:"tax"`
			Total    string `json:"total"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 3, view.Lines[0].Quantity)

	rec = ts.do(http.MethodPost, path+"/decrement", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "250", view.Totals.Subtotal)
	assert.Equal(t, "37.5", view.Totals.Tax)
	assert.Equal(t, "287.5", view.Totals.Total)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, base+"/submit", tok, map[string]any{"order_date": "yesterday"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, base+"/submit", tok, map[string]any{"sale_type": "barter"}).Code)

	rec = ts.do(http.MethodPost, base+"/submit", tok, map[string]any{"order_date": "2026-03-01", "sale_type": "credit"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[map[string]any](t, rec)
	assert.NotZero(t, receipt["order_id"])

	// the draft is consumed
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, base, tok, nil).Code)

	rec = ts.do(http.MethodGet, "/api/v1/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.SalesOrder `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.EqualValues(t, 1, list.Meta.Total)
	order := list.Data[0]
	assert.Equal(t, models.SaleTypeCredit, order.SaleType)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "287.5", order.TotalAmount.String())
	assert.Len(t, order.Items, 2)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, ts.seed.Customers[0].ID, *order.CustomerID)

	var created int
	for _, m := range ts.events.Messages() {
		if m.Topic == events.TopicOrders {
			created++
			ev, ok := m.Event.(events.OrderCreated)
			require.True(t, ok)
			assert.Equal(t, uid, ev.UserID)
		}
	}
	assert.Equal(t, 1, created)
}

func TestRemoveAndDeleteDraft(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/drafts", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/v1/drafts/" + decode[map[string]any](t, rec)["id"].(string)

	item := ts.seed.Stock[1]
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/items", tok, map[string]any{"stock_id": item.ID, "quantity": 1}).Code)

	rec = ts.do(http.MethodDelete, base+"/items/"+strconv.FormatUint(uint64(item.ID), 10), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string]any](t, rec)["lines"])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodDelete, base+"/items/x", tok, nil).Code)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, base, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, base, tok, nil).Code)
}

func TestUsersAdmin(t *testing.T) {
	ts := newTestServer(t)
	admin, adminID := ts.token("boss", models.RoleAdmin)
	clerk, _ := ts.token("clerk", models.RoleClerk)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/v1/users", clerk, nil).Code)

	rec := ts.do(http.MethodPost, "/api/v1/users", admin, map[string]any{"username": "naledi", "password": "pw", "first_name": "Naledi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, models.RoleClerk, created["role"])
	assert.NotContains(t, created, "password_hash")

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/v1/users", admin, map[string]any{"username": "naledi", "password": "pw"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/users", admin, map[string]any{"username": "x", "password": "pw", "role": "root"}).Code)

	rec = ts.do(http.MethodGet, "/api/v1/users?page=1&size=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.User `json:"data"`
		Meta struct {
			Total   int64 `json:"total"`
			HasNext bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2)
	assert.EqualValues(t, 3, list.Meta.Total)
	assert.True(t, list.Meta.HasNext)

	id := strconv.FormatUint(uint64(created["id"].(float64)), 10)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/users/"+id, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/users/"+id, admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodDelete, "/api/v1/users/"+strconv.FormatUint(uint64(adminID), 10), admin, nil).Code)
}

func TestVATRates(t *testing.T) {
	ts := newTestServer(t)
	tok, _ := ts.token("clerk", models.RoleClerk)

	rec := ts.do(http.MethodPost, "/api/v1/vat-rates", tok, map[string]any{"name": "Standard", "percentage": "15"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rate := decode[models.VATRate](t, rec)
	id := strconv.FormatUint(uint64(rate.ID), 10)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/vat-rates", tok, map[string]any{"name": "Exempt", "percentage": "0"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/vat-rates", tok, map[string]any{"name": "Bad", "percentage": "120"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/vat-rates", tok, map[string]any{"name": "Missing"}).Code)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPatch, "/api/v1/vat-rates/"+id, tok, map[string]any{"percentage": "16"}).Code)

	rec = ts.do(http.MethodGet, "/api/v1/vat-rates", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rates := decode[[]models.VATRate](t, rec)
	require.Len(t, rates, 2)
	assert.Equal(t, "Exempt", rates[0].Name)
	assert.Equal(t, "16", rates[1].Percentage.String())

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/vat-rates/"+id, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/vat-rates/"+id, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPatch, "/api/v1/vat-rates/"+id, tok, map[string]any{"name": "Gone"}).Code)
}
