// Package ledger implements the Ledger port over the gateway node's JSON-RPC
// interface. All loosely-typed field decoding happens here; the rest of the
// system sees plain domain types.
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

const coinPageSize = 50

// Client is a JSON-RPC implementation of the Ledger port.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a ledger node's JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger rpc: %w", err)
	}
	return &Client{rpc: c}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.rpc.Close() }

type rawObject struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// GetObject fetches and decodes a ledger object. A null reply maps to
// ErrObjectNotFound; transport and decoding failures map to TransientError.
func (c *Client) GetObject(ctx context.Context, id string) (*ports.Object, error) {
	var raw *rawObject
	if err := c.rpc.CallContext(ctx, &raw, "tollgate_getObject", id); err != nil {
		return nil, &ports.TransientError{Reason: "getObject rpc", Err: err}
	}
	if raw == nil {
		return nil, ports.ErrObjectNotFound
	}
	fields, err := decodeFields(raw.Fields)
	if err != nil {
		return nil, &ports.TransientError{Reason: "getObject decode", Err: err}
	}
	return &ports.Object{ID: raw.ID, Fields: fields}, nil
}

type rawCoinPage struct {
	Coins []struct {
		ID      string `json:"id"`
		Balance any    `json:"balance"`
	} `json:"coins"`
	NextCursor string `json:"nextCursor"`
	HasNext    bool   `json:"hasNext"`
}

// GetCoins returns all value coins owned by the address, following the
// cursor until the ledger reports no further pages.
func (c *Client) GetCoins(ctx context.Context, owner string) ([]core.Coin, error) {
	var coins []core.Coin
	cursor := ""
	for {
		var page rawCoinPage
		if err := c.rpc.CallContext(ctx, &page, "tollgate_getCoins", owner, cursor, coinPageSize); err != nil {
			return nil, &ports.TransientError{Reason: "getCoins rpc", Err: err}
		}
		for _, raw := range page.Coins {
			balance, err := decodeUint(raw.Balance)
			if err != nil {
				return nil, &ports.TransientError{Reason: "getCoins decode", Err: err}
			}
			coins = append(coins, core.Coin{ID: raw.ID, Balance: balance})
		}
		if !page.HasNext {
			return coins, nil
		}
		cursor = page.NextCursor
	}
}

type rawTxResult struct {
	Digest  string   `json:"digest"`
	Created []string `json:"created"`
}

// SplitCoin splits amount off the given coin into a new coin owned by the
// same wallet.
func (c *Client) SplitCoin(ctx context.Context, coinID string, amount uint64) (*ports.TxResult, error) {
	var raw rawTxResult
	if err := c.rpc.CallContext(ctx, &raw, "tollgate_splitCoin", coinID, amount); err != nil {
		return nil, &ports.TransientError{Reason: "splitCoin rpc", Err: err}
	}
	return &ports.TxResult{Digest: raw.Digest, Created: raw.Created}, nil
}

type rawCall struct {
	Target       string `json:"target"`
	Args         []any  `json:"args"`
	Payment      string `json:"payment,omitempty"`
	SplitFromGas uint64 `json:"splitFromGas,omitempty"`
}

// Call submits a contract call and waits for confirmation.
func (c *Client) Call(ctx context.Context, call ports.ContractCall) (*ports.TxResult, error) {
	var raw rawTxResult
	req := rawCall{Target: call.Target, Args: call.Args, Payment: call.Payment, SplitFromGas: call.SplitFromGas}
	if err := c.rpc.CallContext(ctx, &raw, "tollgate_call", req); err != nil {
		return nil, &ports.TransientError{Reason: "call rpc", Err: err}
	}
	return &ports.TxResult{Digest: raw.Digest, Created: raw.Created}, nil
}

// BuildCall builds the contract call transaction without submitting it and
// returns the serialized transaction bytes.
func (c *Client) BuildCall(ctx context.Context, call ports.ContractCall) ([]byte, error) {
	var encoded string
	req := rawCall{Target: call.Target, Args: call.Args, Payment: call.Payment, SplitFromGas: call.SplitFromGas}
	if err := c.rpc.CallContext(ctx, &encoded, "tollgate_buildCall", req); err != nil {
		return nil, &ports.TransientError{Reason: "buildCall rpc", Err: err}
	}
	txBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &ports.TransientError{Reason: "buildCall decode", Err: err}
	}
	return txBytes, nil
}

type rawEvent struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// QueryEvents returns contract events matching the filter.
func (c *Client) QueryEvents(ctx context.Context, filter ports.EventFilter) ([]ports.Event, error) {
	var raw []rawEvent
	if err := c.rpc.CallContext(ctx, &raw, "tollgate_queryEvents", filter.Type, filter.Limit, filter.Descending); err != nil {
		return nil, &ports.TransientError{Reason: "queryEvents rpc", Err: err}
	}
	events := make([]ports.Event, 0, len(raw))
	for _, e := range raw {
		fields, err := decodeFields(e.Fields)
		if err != nil {
			return nil, &ports.TransientError{Reason: "queryEvents decode", Err: err}
		}
		events = append(events, ports.Event{Type: e.Type, Timestamp: e.Timestamp, Fields: fields})
	}
	return events, nil
}
