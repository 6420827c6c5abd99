package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orderbase/checkout/internal/models"
)

const CheckoutRecordedQueue = "checkout.recorded"

type Broker interface {
	DeclareQueue(name string) error
	Publish(ctx context.Context, queue, messageID string, message []byte) error
}

// CheckoutPublisher hands commit outcomes to the ledger consumer.
type CheckoutPublisher struct {
	mq Broker
}

func NewCheckoutPublisher(mq Broker) (*CheckoutPublisher, error) {
	if err := mq.DeclareQueue(CheckoutRecordedQueue); err != nil {
		return nil, err
	}

	return &CheckoutPublisher{mq: mq}, nil
}

// Record publishes a checkout.recorded event; it satisfies the committer's Recorder
func (p *CheckoutPublisher) Record(ctx context.Context, record models.CheckoutRecord) error {
	data, err := json.Marshal(models.CheckoutRecordedEvent{Record: record})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.mq.Publish(ctx, CheckoutRecordedQueue, record.ID, data)
}
