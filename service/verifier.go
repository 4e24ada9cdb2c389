package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

// DefaultFetchTimeout bounds the ledger fetch inside a single verification.
const DefaultFetchTimeout = 10 * time.Second

// Verifier validates signed-header requests against a fetched AccessPass.
// It performs no mutation: concurrent requests bearing the same pass may all
// fetch and validate it independently, and decrementing remaining uses is a
// separate consume operation.
type Verifier struct {
	ledger       ports.Ledger
	fetchTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewVerifier creates an access verifier.
func NewVerifier(ledger ports.Ledger, logger *zap.Logger) *Verifier {
	return &Verifier{
		ledger:       ledger,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// WithFetchTimeout overrides the ledger fetch bound.
func (v *Verifier) WithFetchTimeout(d time.Duration) *Verifier {
	v.fetchTimeout = d
	return v
}

// Verify runs the admission state machine for a request scoped to (domain,
// resource): fetch pass, check owner, check scope, check validity, check
// signature. It returns the pass on admission or a core sentinel error on
// rejection. A ledger fetch failure surfaces as ErrPassNotFound, never as an
// internal error; the caller retries with a fresh request if it wants to.
func (v *Verifier) Verify(ctx context.Context, headers core.ProofHeaders, domain, resource string) (*core.AccessPass, error) {
	if !headers.Complete() {
		return nil, core.ErrPaymentRequired
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	obj, err := v.ledger.GetObject(fetchCtx, headers.PassID)
	if err != nil {
		var transient *ports.TransientError
		switch {
		case errors.Is(err, ports.ErrObjectNotFound):
			return nil, core.ErrPassNotFound
		case errors.As(err, &transient):
			v.logger.Warn("pass fetch failed, treating as not found",
				zap.String("passId", headers.PassID),
				zap.Error(err),
			)
			return nil, core.ErrPassNotFound
		default:
			return nil, fmt.Errorf("unexpected ledger failure: %w", err)
		}
	}

	pass, err := passFromObject(obj)
	if err != nil {
		v.logger.Warn("malformed pass object, treating as not found",
			zap.String("passId", headers.PassID),
			zap.Error(err),
		)
		return nil, core.ErrPassNotFound
	}

	if !pass.OwnedBy(headers.Signer) {
		return nil, core.ErrOwnerMismatch
	}
	if !pass.Matches(domain, resource) {
		return nil, core.ErrScopeMismatch
	}
	if !pass.Usable(v.now()) {
		if pass.Remaining == 0 {
			return nil, core.ErrNoRemainingUses
		}
		return nil, core.ErrPassExpired
	}

	// The timestamp is signed but deliberately not bounded against current
	// time; the pass itself carries the expiry.
	msg := core.ProofMessage(pass.ID, domain, resource, headers.Timestamp)
	sig, err := hexutil.Decode(headers.Signature)
	if err != nil {
		return nil, core.ErrBadSignature
	}
	ok, err := eth.VerifySignatureAgainstAddress(msg, sig, common.HexToAddress(headers.Signer))
	if err != nil || !ok {
		return nil, core.ErrBadSignature
	}

	return pass, nil
}

// passFromObject decodes an AccessPass from a ledger object's normalized
// fields.
func passFromObject(obj *ports.Object) (*core.AccessPass, error) {
	remaining, err := fieldUint(obj.Fields, "remaining")
	if err != nil {
		return nil, err
	}
	expiry, err := fieldUint(obj.Fields, "expiry")
	if err != nil {
		return nil, err
	}
	pricePaid, err := fieldUint(obj.Fields, "price_paid")
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"owner", "domain", "resource"} {
		if _, ok := obj.Fields[name]; !ok {
			return nil, fmt.Errorf("pass object missing field %q", name)
		}
	}
	return &core.AccessPass{
		ID:        obj.ID,
		Owner:     obj.Fields["owner"],
		Domain:    obj.Fields["domain"],
		Resource:  obj.Fields["resource"],
		Remaining: remaining,
		Expiry:    int64(expiry),
		Nonce:     obj.Fields["nonce"],
		PricePaid: pricePaid,
	}, nil
}

func fieldUint(fields map[string]string, name string) (uint64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("pass object missing field %q", name)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pass field %q is not numeric: %w", name, err)
	}
	return n, nil
}
