// Package consumer empties session carts once the backend reports that the
// checkout for them completed.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/logging"
	"github.com/segmentio/kafka-go"
)

var ErrMissingSession = errors.New("event carries neither session_id nor user_id")

// CheckoutCompletedEvent is the part of the checkout outbox payload this
// service cares about. Older producers only set user_id.
type CheckoutCompletedEvent struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
}

func (e CheckoutCompletedEvent) session() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.UserID
}

// Clearer empties the cart of a session.
type Clearer interface {
	ClearCart(ctx context.Context, sessionID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	carts  Clearer
	reader messageReader
	log    logging.Logger
}

func NewConsumer(carts Clearer, log logging.Logger, topic, groupID string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(carts, reader, log)
}

func newConsumer(carts Clearer, reader messageReader, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.Nop()
	}
	return &Consumer{carts: carts, reader: reader, log: log}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error(context.Background(), "error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error(ctx, "error reading message", "error", err)
		return
	}

	if err := c.handle(ctx, m.Value); err != nil {
		c.log.Error(ctx, "checkout event skipped", "offset", m.Offset, "error", err)
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event CheckoutCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}

	sessionID := event.session()
	if sessionID == "" {
		return fmt.Errorf("checkout %s: %w", event.CheckoutID, ErrMissingSession)
	}

	if err := c.carts.ClearCart(ctx, sessionID); err != nil {
		return fmt.Errorf("checkout %s: %w", event.CheckoutID, err)
	}
	c.log.Info(ctx, "cart cleared after checkout", "checkout_id", event.CheckoutID, "session_id", sessionID)
	return nil
}
