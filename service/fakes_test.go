package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// fakeClock returns immediately from every sleep and records the durations.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	return ctx.Err()
}

type splitCall struct {
	coinID string
	amount uint64
}

// fakeLedger is a scriptable in-memory Ledger.
type fakeLedger struct {
	mu sync.Mutex

	objects map[string]*ports.Object
	coins   []core.Coin
	events  []ports.Event

	getObjectErr error
	getCoinsErr  error
	callErr      error
	queryErr     error

	splitReportsCreated bool

	splitCalls []splitCall
	calls      []ports.ContractCall
	buildCalls []ports.ContractCall
	builtTx    []byte

	// callResult overrides the result of the next Call when set.
	callResult *ports.TxResult
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		objects: make(map[string]*ports.Object),
		builtTx: []byte("approval-tx"),
	}
}

func (f *fakeLedger) setPass(pass *core.AccessPass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[pass.ID] = passObject(pass)
}

func passObject(pass *core.AccessPass) *ports.Object {
	return &ports.Object{
		ID: pass.ID,
		Fields: map[string]string{
			"owner":      pass.Owner,
			"domain":     pass.Domain,
			"resource":   pass.Resource,
			"remaining":  strconv.FormatUint(pass.Remaining, 10),
			"expiry":     strconv.FormatInt(pass.Expiry, 10),
			"nonce":      pass.Nonce,
			"price_paid": strconv.FormatUint(pass.PricePaid, 10),
		},
	}
}

func (f *fakeLedger) GetObject(ctx context.Context, id string) (*ports.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getObjectErr != nil {
		return nil, f.getObjectErr
	}
	obj, ok := f.objects[id]
	if !ok {
		return nil, ports.ErrObjectNotFound
	}
	return obj, nil
}

func (f *fakeLedger) GetCoins(ctx context.Context, owner string) ([]core.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getCoinsErr != nil {
		return nil, f.getCoinsErr
	}
	coins := make([]core.Coin, len(f.coins))
	copy(coins, f.coins)
	return coins, nil
}

// SplitCoin deducts the amount from the source coin and adds the new coin to
// the wallet, mimicking a confirmed split whose read path is already caught
// up.
func (f *fakeLedger) SplitCoin(ctx context.Context, coinID string, amount uint64) (*ports.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.splitCalls = append(f.splitCalls, splitCall{coinID: coinID, amount: amount})

	newID := "split-" + strconv.Itoa(len(f.splitCalls))
	for i := range f.coins {
		if f.coins[i].ID == coinID {
			f.coins[i].Balance -= amount
		}
	}
	f.coins = append(f.coins, core.Coin{ID: newID, Balance: amount})

	result := &ports.TxResult{Digest: "split-digest"}
	if f.splitReportsCreated {
		result.Created = []string{newID}
	}
	return result, nil
}

func (f *fakeLedger) Call(ctx context.Context, call ports.ContractCall) (*ports.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.callResult != nil {
		return f.callResult, nil
	}
	return &ports.TxResult{Digest: "call-digest"}, nil
}

func (f *fakeLedger) BuildCall(ctx context.Context, call ports.ContractCall) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildCalls = append(f.buildCalls, call)
	return f.builtTx, nil
}

func (f *fakeLedger) QueryEvents(ctx context.Context, filter ports.EventFilter) ([]ports.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	events := make([]ports.Event, len(f.events))
	copy(events, f.events)
	return events, nil
}
