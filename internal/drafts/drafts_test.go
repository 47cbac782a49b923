package drafts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/partsdesk/internal/models"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mr
}

func TestCreateGetSave(t *testing.T) {
	s, mr := newStore(t, time.Hour)
	ctx := context.Background()

	d, err := s.Create(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	assert.True(t, mr.Exists("draft:"+d.ID))

	c := d.Cart()
	require.NoError(t, c.Select(models.StockItem{ID: 3, SellingPrice: decimal.NewFromInt(40), QuantityOnHand: 5}, 2))
	d.SetCart(c)
	d.Customer = &models.Customer{ID: 9, Name: "Jo"}
	require.NoError(t, s.Save(ctx, d))

	got, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.UserID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, "80", got.Cart().Totals().Subtotal.String())
	require.NotNil(t, got.CustomerID())
	assert.EqualValues(t, 9, *got.CustomerID())
}

func TestSaveRefreshesTTL(t *testing.T) {
	s, mr := newStore(t, time.Hour)
	ctx := context.Background()

	d, err := s.Create(ctx, 1)
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	require.NoError(t, s.Save(ctx, d))
	assert.Equal(t, time.Hour, mr.TTL("draft:"+d.ID))

	mr.FastForward(61 * time.Minute)
	_, err = s.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndDeleteMissing(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()

	_, err := s.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	d, err := s.Create(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, d.ID))
	assert.ErrorIs(t, s.Delete(ctx, d.ID), ErrNotFound)

	_, err = s.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	_ = rdb.Close()

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}
