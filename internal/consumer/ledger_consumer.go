package consumer

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/orderbase/checkout/internal/models"
)

type LedgerWriter interface {
	Create(ctx context.Context, rec models.CheckoutRecord) error
}

// Acknowledger is the part of amqp.Delivery the consumer needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type LedgerConsumer struct {
	ledger LedgerWriter
}

func NewLedgerConsumer(ledger LedgerWriter) *LedgerConsumer {
	return &LedgerConsumer{ledger: ledger}
}

// ProcessCheckoutRecorded handles checkout.recorded events until the
// channel closes or ctx is done
func (c *LedgerConsumer) ProcessCheckoutRecorded(ctx context.Context, messages <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				log.Println("⚠️ checkout.recorded channel closed")
				return
			}
			c.handle(ctx, msg.Body, &msg)
		}
	}
}

func (c *LedgerConsumer) handle(ctx context.Context, body []byte, ack Acknowledger) {
	log.Printf("📥 Received checkout.recorded event")

	var event models.CheckoutRecordedEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Record.ID == "" {
		log.Printf("❌ Failed to parse event: %v", err)
		ack.Nack(false, false) // Don't requeue bad messages
		return
	}

	if err := c.ledger.Create(ctx, event.Record); err != nil {
		log.Printf("❌ Failed to store checkout %s: %v", event.Record.ID, err)
		ack.Nack(false, true) // Requeue for retry
		return
	}

	ack.Ack(false)
	log.Printf("✅ Checkout %s of table %d stored (%s)", event.Record.ID, event.Record.TableNumber, event.Record.Outcome)
}
