package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/tollgate/core"
)

// ErrObjectNotFound is returned by Ledger.GetObject when the ledger
// definitively reports that no object exists under the requested id.
var ErrObjectNotFound = errors.New("ledger object not found")

// TransientError wraps a ledger failure that says nothing about whether the
// requested data exists: timeouts, transport errors, malformed replies.
// Callers distinguish it from ErrObjectNotFound with errors.As, so the
// found / not-found / transient triage is a total decision.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient ledger error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient ledger error (%s)", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Object is a ledger object with its fields decoded to plain strings at the
// adapter boundary.
type Object struct {
	ID     string
	Fields map[string]string
}

// TxResult describes a confirmed ledger transaction.
type TxResult struct {
	Digest  string
	Created []string // Ids of objects created by the transaction, when reported
}

// Event is a decoded contract event.
type Event struct {
	Type      string
	Timestamp int64
	Fields    map[string]string
}

// EventFilter selects events by type, bounded to a recent window.
type EventFilter struct {
	Type       string
	Limit      int
	Descending bool
}

// ContractCall describes a single contract invocation. Payment names the
// coin spent as the call's payment argument. SplitFromGas, when non-zero,
// asks the ledger to split that amount off the fee-paying coin inside the
// same transaction and use the split output as payment; this is how a
// single-coin wallet pays price and fee from one underlying coin without an
// ordering problem across two transactions.
type ContractCall struct {
	Target       string
	Args         []any
	Payment      string
	SplitFromGas uint64
}

// Ledger is the external blockchain read/write interface.
type Ledger interface {
	// GetObject fetches an object by id. Returns ErrObjectNotFound when the
	// ledger reports no such object, or a *TransientError when the answer is
	// unknown.
	GetObject(ctx context.Context, id string) (*Object, error)

	// GetCoins returns every value coin owned by the address, following
	// pagination internally.
	GetCoins(ctx context.Context, owner string) ([]core.Coin, error)

	// SplitCoin splits amount off the given coin into a newly created coin
	// owned by the same wallet.
	SplitCoin(ctx context.Context, coinID string, amount uint64) (*TxResult, error)

	// Call submits a contract call transaction and waits for confirmation.
	Call(ctx context.Context, call ContractCall) (*TxResult, error)

	// BuildCall builds the transaction for a contract call without submitting
	// it, returning the serialized transaction bytes. Used for key-release
	// approvals, which are evaluated rather than executed.
	BuildCall(ctx context.Context, call ContractCall) ([]byte, error)

	// QueryEvents returns contract events matching the filter.
	QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}
