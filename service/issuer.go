package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/layer-3/tollgate/core"
)

// Issuer produces 402 payment challenges for unauthenticated requests.
type Issuer struct {
	contract ContractConfig
	now      func() time.Time
}

// NewIssuer creates a challenge issuer.
func NewIssuer(contract ContractConfig) *Issuer {
	return &Issuer{contract: contract, now: time.Now}
}

// Challenge builds the 402 payload for a protected resource. Each call
// generates a fresh nonce; nonces are not stored or deduplicated
// server-side, they only correlate a purchase to the challenge that
// prompted it.
func (i *Issuer) Challenge(entry *core.ResourceEntry) (*core.PaymentChallenge, error) {
	units, err := PriceInSmallestUnit(entry.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to convert price for %s%s: %w", entry.Domain, entry.Resource, err)
	}

	return &core.PaymentChallenge{
		Status:              http.StatusPaymentRequired,
		PaymentRequired:     true,
		Price:               entry.Price,
		PriceInSmallestUnit: units,
		Receiver:            i.contract.Receiver,
		Domain:              entry.Domain,
		Resource:            core.NormalizeResource(entry.Resource),
		Nonce:               i.newNonce(),
		PackageID:           i.contract.PackageID,
		Module:              i.contract.Module,
	}, nil
}

// newNonce returns "{unix millis}-{random token}". It only needs to be
// practically unique per request, not cryptographically hardened.
func (i *Issuer) newNonce() string {
	return fmt.Sprintf("%d-%s", i.now().UnixMilli(), uuid.New().String())
}

// PriceInSmallestUnit converts a decimal price in whole currency units to
// the smallest unit by floor(price * 10^9). Precision beyond the smallest
// unit is silently rounded down.
func PriceInSmallestUnit(price string) (uint64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("price %q is negative", price)
	}
	units := d.Shift(core.SmallestUnitExponent).Floor()
	if !units.IsInteger() || units.Sign() < 0 {
		return 0, fmt.Errorf("price %q does not convert to smallest units", price)
	}
	return uint64(units.IntPart()), nil
}
