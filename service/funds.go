package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/poll"
	"github.com/layer-3/tollgate/ports"
)

// FeeBuffer is the residual balance a coin must retain beyond the payment
// amount so the wallet is never stranded without value for transaction fees.
const FeeBuffer uint64 = 10_000_000

// DefaultLocatePoll bounds the re-query loop that locates a freshly split
// coin once the ledger's read path has caught up.
var DefaultLocatePoll = poll.Config{Attempts: 5, Delay: 500 * time.Millisecond, Backoff: 1}

// Payment names the coin to spend on a purchase. When SplitFromGas is
// non-zero the wallet holds a single coin, and the purchase transaction must
// split the amount off the fee-paying coin itself; CoinID is empty in that
// case.
type Payment struct {
	CoinID       string
	SplitFromGas uint64
}

// Funds turns a wallet's coin set into a single coin of an exact required
// amount before spending it.
type Funds struct {
	ledger ports.Ledger
	owner  string
	clock  poll.Clock
	locate poll.Config
	logger *zap.Logger
}

// NewFunds creates a fund selector for the wallet address.
func NewFunds(ledger ports.Ledger, owner string, clock poll.Clock, logger *zap.Logger) *Funds {
	return &Funds{
		ledger: ledger,
		owner:  owner,
		clock:  clock,
		locate: DefaultLocatePoll,
		logger: logger,
	}
}

// ExactCoin returns a coin whose balance equals amount exactly, if one
// exists. Using it directly is the zero-waste path and is always preferred
// over splitting.
func ExactCoin(coins []core.Coin, amount uint64) (core.Coin, bool) {
	for _, coin := range coins {
		if coin.Balance == amount {
			return coin, true
		}
	}
	return core.Coin{}, false
}

// SelectCoin returns the largest coin able to cover amount plus the fee
// buffer, or false when no coin qualifies.
func SelectCoin(coins []core.Coin, amount uint64) (core.Coin, bool) {
	candidates := make([]core.Coin, 0, len(coins))
	for _, coin := range coins {
		if coversWithFee(coin.Balance, amount) {
			candidates = append(candidates, coin)
		}
	}
	if len(candidates) == 0 {
		return core.Coin{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Balance > candidates[j].Balance
	})
	return candidates[0], true
}

// coversWithFee reports whether a coin balance can pay amount and still
// retain the fee buffer. Computed by subtraction so an untrusted amount near
// the uint64 ceiling cannot wrap the comparison around.
func coversWithFee(balance, amount uint64) bool {
	return balance >= FeeBuffer && balance-FeeBuffer >= amount
}

// PaymentCoin produces a payment of exactly amount. Preference order: a coin
// of the exact balance, spent directly; a single-coin wallet, deferring the
// split into the purchase transaction itself; otherwise split the largest
// qualifying coin and locate the new coin by re-querying the wallet. The
// payment never exceeds amount; fees are charged at the ledger level, not
// against either split output.
func (f *Funds) PaymentCoin(ctx context.Context, amount uint64) (*Payment, error) {
	coins, err := f.ledger.GetCoins(ctx, f.owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list coins: %w", err)
	}
	if len(coins) == 0 {
		return nil, core.ErrInsufficientFunds
	}

	if coin, ok := ExactCoin(coins, amount); ok {
		return &Payment{CoinID: coin.ID}, nil
	}

	if len(coins) == 1 {
		// One coin must pay both the amount and the fee. The split and the
		// spend are merged into one atomic transaction so the split output
		// can be referenced as payment without existing beforehand.
		if !coversWithFee(coins[0].Balance, amount) {
			return nil, core.ErrInsufficientFunds
		}
		return &Payment{SplitFromGas: amount}, nil
	}

	candidate, ok := SelectCoin(coins, amount)
	if !ok {
		return nil, core.ErrInsufficientFunds
	}

	tx, err := f.ledger.SplitCoin(ctx, candidate.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to split coin %s: %w", candidate.ID, err)
	}
	f.logger.Debug("split coin",
		zap.String("coinId", candidate.ID),
		zap.Uint64("amount", amount),
		zap.String("digest", tx.Digest),
	)

	coinID, err := f.locateSplitCoin(ctx, coins, tx, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to locate split coin: %w", err)
	}
	return &Payment{CoinID: coinID}, nil
}

// locateSplitCoin finds the coin created by a split. Not every ledger path
// reports created object ids, so the fallback re-queries the wallet until a
// new coin of the exact amount appears, tolerating indexing lag.
func (f *Funds) locateSplitCoin(ctx context.Context, before []core.Coin, tx *ports.TxResult, amount uint64) (string, error) {
	if len(tx.Created) > 0 {
		return tx.Created[0], nil
	}

	known := make(map[string]struct{}, len(before))
	for _, coin := range before {
		known[coin.ID] = struct{}{}
	}

	return poll.Do(ctx, f.clock, f.locate, func(ctx context.Context) (string, bool, error) {
		coins, err := f.ledger.GetCoins(ctx, f.owner)
		if err != nil {
			// Transient read failures are part of what the poll tolerates.
			f.logger.Debug("coin re-query failed", zap.Error(err))
			return "", false, nil
		}
		for _, coin := range coins {
			if _, seen := known[coin.ID]; seen {
				continue
			}
			if coin.Balance == amount {
				return coin.ID, true, nil
			}
		}
		return "", false, nil
	})
}
