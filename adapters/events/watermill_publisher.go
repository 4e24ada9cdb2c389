package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/tollgate/ports"
)

// Topics for gateway events
const (
	AccessGrantedTopic = "tollgate.access_granted"
	PassPurchasedTopic = "tollgate.pass_purchased"
)

// AccessGrantedEvent represents an admitted request
type AccessGrantedEvent struct {
	Owner    string `json:"owner"`
	PassID   string `json:"pass_id"`
	Domain   string `json:"domain"`
	Resource string `json:"resource"`
}

// PassPurchasedEvent represents a completed pass purchase
type PassPurchasedEvent struct {
	Owner     string `json:"owner"`
	PassID    string `json:"pass_id"`
	PricePaid uint64 `json:"price_paid"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAccessGranted publishes an access-granted event
func (p *WatermillPublisher) PublishAccessGranted(ctx context.Context, owner, passID, domain, resource string) error {
	event := AccessGrantedEvent{
		Owner:    owner,
		PassID:   passID,
		Domain:   domain,
		Resource: resource,
	}
	return p.publish(AccessGrantedTopic, passID, event)
}

// PublishPassPurchased publishes a pass-purchased event
func (p *WatermillPublisher) PublishPassPurchased(ctx context.Context, owner, passID string, pricePaid uint64) error {
	event := PassPurchasedEvent{
		Owner:     owner,
		PassID:    passID,
		PricePaid: pricePaid,
	}
	return p.publish(PassPurchasedTopic, passID, event)
}

func (p *WatermillPublisher) publish(topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
