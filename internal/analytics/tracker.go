// Package analytics publishes storefront behaviour events.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventAddToCart = "add_to_cart"

// Event is the payload written to the analytics topic.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	SessionID  string    `json:"session_id"`
	ItemID     string    `json:"item_id"`
	ProductID  string    `json:"product_id"`
	VariantID  *string   `json:"variant_id,omitempty"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	Qty        int       `json:"qty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newAddToCart(sessionID string, item domain.CartItem, now time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		EventType:  EventAddToCart,
		SessionID:  sessionID,
		ItemID:     item.ItemID,
		ProductID:  item.ProductID,
		VariantID:  item.VariantID,
		Name:       item.Name,
		Price:      item.Price,
		Qty:        item.Qty,
		OccurredAt: now.UTC(),
	}
}

// LogTracker writes events to the log instead of a broker.
type LogTracker struct {
	Log logging.Logger
}

func (t LogTracker) AddToCart(ctx context.Context, sessionID string, item domain.CartItem) {
	t.Log.Info(ctx, "add to cart",
		"session_id", sessionID,
		"item_id", item.ItemID,
		"price", item.Price,
		"qty", item.Qty,
	)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTracker publishes events keyed by session id. Writes are
// asynchronous so a slow broker never holds up a cart mutation.
type KafkaTracker struct {
	writer messageWriter
	now    func() time.Time
	log    logging.Logger
}

func NewKafkaTracker(topic string, log logging.Logger, brokers ...string) *KafkaTracker {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error(context.Background(), "failed to publish analytics events",
					"count", len(messages), "error", err)
			}
		},
	}
	return newKafkaTracker(w, time.Now, log)
}

func newKafkaTracker(w messageWriter, now func() time.Time, log logging.Logger) *KafkaTracker {
	return &KafkaTracker{writer: w, now: now, log: log}
}

func (t *KafkaTracker) AddToCart(ctx context.Context, sessionID string, item domain.CartItem) {
	event := newAddToCart(sessionID, item, t.now())
	payload, err := json.Marshal(event)
	if err != nil {
		t.log.Error(ctx, "failed to encode analytics event", "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		t.log.Error(ctx, "failed to publish analytics event", "event_id", event.EventID, "error", err)
	}
}

func (t *KafkaTracker) Close() error {
	return t.writer.Close()
}
