// Package events publishes domain events to Kafka after successful writes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/partsdesk/internal/logging"
)

const (
	TopicOrders = "order_events"
	TopicTables = "table_events"
	TopicUsers  = "user_events"
)

const (
	TypeOrderCreated = "order_created"
	TypeRowInserted  = "row_inserted"
	TypeRowUpdated   = "row_updated"
	TypeRowUpserted  = "row_upserted"
	TypeRowDeleted   = "row_deleted"
	TypeUserCreated  = "user_created"
)

type OrderCreated struct {
	Type       string          `json:"type"`
	OrderID    uint            `json:"orderID"`
	CustomerID *uint           `json:"customerID,omitempty"`
	UserID     uint            `json:"userID"`
	Lines      int             `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	At         time.Time       `json:"at"`
}

type RowChanged struct {
	Type  string `json:"type"`
	Table string `json:"table"`
	ID    uint   `json:"id,omitempty"`
	Rows  int    `json:"rows,omitempty"`
	By    uint   `json:"by"`
}

type UserCreated struct {
	Type     string `json:"type"`
	UserID   uint   `json:"userID"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
func (Nop) Close() error                                       { return nil }

type Message struct {
	Topic string
	Key   string
	Event any
}

// Memory keeps published events in order.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

func (m *Memory) Publish(_ context.Context, topic, key string, event any) error {
	m.mu.Lock()
	m.messages = append(m.messages, Message{Topic: topic, Key: key, Event: event})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Emit publishes best effort: a failure is logged and otherwise ignored.
func Emit(ctx context.Context, p Publisher, topic, key string, event any) {
	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			"topic", topic,
			"key", key,
			"error", err,
		)
	}
}
