package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/partsdesk/internal/drafts"
	"github.com/Skotchmaster/partsdesk/internal/events"
	"github.com/Skotchmaster/partsdesk/internal/hash"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	"github.com/Skotchmaster/partsdesk/internal/repo"
	"github.com/Skotchmaster/partsdesk/internal/search"
	"github.com/Skotchmaster/partsdesk/internal/testenv"
	"github.com/Skotchmaster/partsdesk/pkg/tokens"
)

var testSecret = []byte("test-jwt-secret")

type fixture struct {
	users  *UserService
	vat    *VATService
	orders *OrderService
	lookup *LookupService
	events *events.Memory
	seed   testenv.Fixtures
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, db := testenv.NewStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := repo.New(db)
	ev := &events.Memory{}
	return &fixture{
		users:  &UserService{Repo: r, JWTSecret: testSecret, Events: ev},
		vat:    &VATService{Backend: store},
		orders: &OrderService{Repo: r, Backend: store, Drafts: drafts.New(rdb, time.Hour), Events: ev},
		lookup: &LookupService{Repo: r, Backend: store},
		events: ev,
		seed:   testenv.Seed(t, db),
	}
}

func ptr[T any](v T) *T { return &v }

func TestLoginIssuesAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Username: "lerato", Password: "s3cret"})
	require.NoError(t, err)

	res, err := f.users.Login(ctx, "lerato", "s3cret")
	require.NoError(t, err)
	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClerk, claims.Role)
	assert.Equal(t, "lerato", claims.Username)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)

	_, err = f.users.Login(ctx, "lerato", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Login(ctx, "ghost", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Username: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.users.CreateUser(ctx, CreateUserRequest{Username: "x", Password: "p", Role: "owner"})
	assert.ErrorIs(t, err, ErrValidation)

	u, err := f.users.CreateUser(ctx, CreateUserRequest{Username: "x", Password: "p", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.NotEqual(t, "p", u.PasswordHash)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Username: "x", Password: "q"})
	assert.ErrorIs(t, err, ErrUserAlreadyExist)

	msgs := f.events.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TopicUsers, msgs[0].Topic)

	require.NoError(t, f.users.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, f.users.DeleteUser(ctx, u.ID), ErrNotFound)
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.SeedAdmin(ctx, "admin", "admin-pw"))
	require.NoError(t, f.users.SeedAdmin(ctx, "admin", "other"))
	require.NoError(t, f.users.SeedAdmin(ctx, "", ""))

	total, users, err := f.users.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.RoleAdmin, users[0].Role)

	_, err = f.users.Login(ctx, "admin", "admin-pw")
	assert.NoError(t, err)
}

func TestVATRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.vat.Create(ctx, VATInput{Name: ptr("standard")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.vat.Create(ctx, VATInput{Name: ptr(" "), Percentage: ptr(decimal.NewFromInt(15))})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.vat.Create(ctx, VATInput{Name: ptr("odd"), Percentage: ptr(decimal.NewFromInt(101))})
	assert.ErrorIs(t, err, ErrValidation)

	std, err := f.vat.Create(ctx, VATInput{Name: ptr("standard"), Percentage: ptr(decimal.NewFromInt(15))})
	require.NoError(t, err)
	_, err = f.vat.Create(ctx, VATInput{Name: ptr("exempt"), Percentage: ptr(decimal.Zero)})
	require.NoError(t, err)

	require.NoError(t, f.vat.Update(ctx, std.ID, VATInput{Percentage: ptr(decimal.NewFromInt(16))}))
	assert.ErrorIs(t, f.vat.Update(ctx, std.ID, VATInput{}), ErrValidation)
	assert.ErrorIs(t, f.vat.Update(ctx, 999, VATInput{Name: ptr("x")}), ErrNotFound)

	rates, err := f.vat.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "exempt", rates[0].Name)
	assert.True(t, decimal.NewFromInt(16).Equal(rates[1].Percentage))

	require.NoError(t, f.vat.Delete(ctx, std.ID))
	assert.ErrorIs(t, f.vat.Delete(ctx, std.ID), ErrNotFound)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads, filter := f.seed.Stock[0], f.seed.Stock[1]

	d, err := f.orders.NewDraft(ctx, 1)
	require.NoError(t, err)

	_, err = f.orders.GetDraft(ctx, 2, d.ID)
	assert.ErrorIs(t, err, ErrNotFound, "other users cannot see the draft")

	d, err = f.orders.AddItem(ctx, 1, d.ID, pads.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Lines[0].Quantity, "clamped to stock on hand")

	_, err = f.orders.AddItem(ctx, 1, d.ID, f.seed.Stock[2].ID, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.orders.AddItem(ctx, 1, d.ID, 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	d, err = f.orders.AddItem(ctx, 1, d.ID, filter.ID, 1)
	require.NoError(t, err)
	d, err = f.orders.Decrement(ctx, 1, d.ID, pads.ID)
	require.NoError(t, err)
	d, err = f.orders.Increment(ctx, 1, d.ID, filter.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", d.Totals.Subtotal.String())

	_, err = f.orders.Increment(ctx, 1, d.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	d, err = f.orders.SetCustomer(ctx, 1, d.ID, f.seed.Customers[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna Botha", d.Customer.Name)

	r, err := f.orders.Submit(ctx, 1, d.ID, orderentry.SubmitRequest{SaleType: models.SaleTypeCredit})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Lines)
	assert.Equal(t, "345", r.Totals.Total.String())

	_, err = f.orders.GetDraft(ctx, 1, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	total, orders, err := f.orders.ListOrders(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.SaleTypeCredit, orders[0].SaleType)

	msgs := f.events.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, events.TopicOrders, last.Topic)
	assert.Equal(t, r.OrderID, last.Event.(events.OrderCreated).OrderID)
}

func TestSubmitEmptyDraftKeepsIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.orders.NewDraft(ctx, 1)
	require.NoError(t, err)

	_, err = f.orders.Submit(ctx, 1, d.ID, orderentry.SubmitRequest{})
	assert.ErrorIs(t, err, orderentry.ErrEmptyCart)

	_, err = f.orders.GetDraft(ctx, 1, d.ID)
	assert.NoError(t, err)
	require.NoError(t, f.orders.DeleteDraft(ctx, 1, d.ID))
}

func TestLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stock, err := f.lookup.SearchStock(ctx, "bp-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, "Brake pad set", stock[0].Name)

	customers, err := f.lookup.SearchCustomers(ctx, "PANEL", 0, 10)
	require.NoError(t, err)
	require.Len(t, customers, 1)

	all, err := f.lookup.SearchCustomers(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.lookup.FullText(ctx, "brake", 0, 10)
	assert.ErrorIs(t, err, search.ErrDisabled)
	_, err = f.lookup.Reindex(ctx)
	assert.ErrorIs(t, err, search.ErrDisabled)
}

// esRecorder answers Elasticsearch calls with success and remembers them.
type esRecorder struct {
	mu     sync.Mutex
	calls  []string
	bodies []string
}

func (r *esRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	r.mu.Lock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()

	answer := `{"version":{"number":"9.0.0"}}`
	switch {
	case strings.HasSuffix(req.URL.Path, "/_bulk"):
		answer = `{"errors":false,"items":[{"index":{"status":200}}]}`
	case req.Method == http.MethodDelete:
		answer = `{"result":"deleted"}`
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(answer)),
		Request:    req,
	}, nil
}

func TestSyncStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.lookup.SyncStock(ctx, f.seed.Stock[0].ID), "no index configured")

	rec := &esRecorder{}
	es, err := search.NewClient(ctx, search.Config{URL: "http://es.test:9200", Transport: rec})
	require.NoError(t, err)
	f.lookup.Index = search.NewStockIndex(es, "")

	require.NoError(t, f.lookup.SyncStock(ctx, f.seed.Stock[1].ID, 999))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.calls, 3)
	assert.Equal(t, "POST /stock/_bulk", rec.calls[1])
	assert.Contains(t, rec.bodies[1], "Oil filter")
	assert.NotContains(t, rec.bodies[1], "Brake pad set")
	assert.Equal(t, "DELETE /stock/_doc/999", rec.calls[2])
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	weak, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Username: "legacy", PasswordHash: string(weak), Role: models.RoleClerk}
	require.NoError(t, f.users.Repo.CreateUser(ctx, u))

	_, err = f.users.Login(ctx, "legacy", "s3cret")
	require.NoError(t, err)

	stored, err := f.users.Repo.GetUserByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.False(t, hash.Outdated(stored.PasswordHash))
	assert.True(t, hash.CheckPassword(stored.PasswordHash, "s3cret"))
}
