// Package drafts keeps unsubmitted orders in Redis so an order can be built over
// several HTTP requests.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/models"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "draft:"
)

var ErrNotFound = errors.New("draft not found")

type Draft struct {
	ID        string           `json:"id"`
	UserID    uint             `json:"user_id"`
	Customer  *models.Customer `json:"customer,omitempty"`
	Lines     []cart.Line      `json:"lines"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Cart rebuilds the draft's cart.
func (d *Draft) Cart() *cart.Cart {
	return cart.FromLines(d.Lines)
}

func (d *Draft) SetCart(c *cart.Cart) {
	d.Lines = c.Lines()
}

func (d *Draft) CustomerID() *uint {
	if d.Customer == nil {
		return nil
	}
	id := d.Customer.ID
	return &id
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) Create(ctx context.Context, userID uint) (*Draft, error) {
	d := &Draft{ID: uuid.NewString(), UserID: userID, Lines: []cart.Line{}}
	if err := s.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	data, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

// Save stores d and restarts its expiry.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()
	if d.Lines == nil {
		d.Lines = []cart.Line{}
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.rdb.Set(ctx, key(d.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
