package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/tollgate/internal/poll"
	"github.com/layer-3/tollgate/ports"
)

// PurchaseRelay forwards on-chain PassPurchased events to the gateway's
// event stream so subscribers do not need their own ledger connection. Each
// event is published at most once per process lifetime; duplicates across
// restarts are acceptable for consumers, which key on pass id.
type PurchaseRelay struct {
	ledger    ports.Ledger
	events    ports.EventPublisher
	eventType string
	window    int
	clock     poll.Clock
	logger    *zap.Logger

	seen map[string]struct{}
}

// NewPurchaseRelay creates a relay for the contract's purchase events.
func NewPurchaseRelay(ledger ports.Ledger, events ports.EventPublisher, contract ContractConfig, window int, clock poll.Clock, logger *zap.Logger) *PurchaseRelay {
	if window <= 0 {
		window = 50
	}
	return &PurchaseRelay{
		ledger:    ledger,
		events:    events,
		eventType: contract.PassPurchasedEventType(),
		window:    window,
		clock:     clock,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
}

// Run polls for purchase events until the context is canceled, sleeping
// interval between scans.
func (r *PurchaseRelay) Run(ctx context.Context, interval time.Duration) error {
	for {
		if err := r.Scan(ctx); err != nil {
			r.logger.Warn("purchase event scan failed", zap.Error(err))
		}
		if err := r.clock.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Scan fetches the recent purchase events and publishes the ones not seen
// before. Transient ledger failures are returned so Run can log them; they
// do not stop the relay.
func (r *PurchaseRelay) Scan(ctx context.Context) error {
	events, err := r.ledger.QueryEvents(ctx, ports.EventFilter{
		Type:       r.eventType,
		Limit:      r.window,
		Descending: true,
	})
	if err != nil {
		return err
	}

	for _, event := range events {
		passID := event.Fields["pass_id"]
		if passID == "" {
			continue
		}
		if _, ok := r.seen[passID]; ok {
			continue
		}

		pricePaid, _ := strconv.ParseUint(event.Fields["price_paid"], 10, 64)
		if err := r.events.PublishPassPurchased(ctx, event.Fields["owner"], passID, pricePaid); err != nil {
			r.logger.Warn("failed to publish purchase event",
				zap.String("passId", passID),
				zap.Error(err),
			)
			continue
		}
		r.seen[passID] = struct{}{}
	}
	return nil
}
