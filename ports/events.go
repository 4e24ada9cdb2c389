package ports

import "context"

// EventPublisher publishes gateway events to notify other instances
type EventPublisher interface {
	PublishAccessGranted(ctx context.Context, owner, passID, domain, resource string) error
	PublishPassPurchased(ctx context.Context, owner, passID string, pricePaid uint64) error
}
