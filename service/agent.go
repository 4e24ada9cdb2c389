package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/poll"
	"github.com/layer-3/tollgate/ports"
)

// HeaderEncrypted marks a served body that is still encrypted and needs the
// key-release service to open it.
const HeaderEncrypted = "x-content-encrypted"

// AgentConfig bounds the payment agent's retries and settle behavior.
type AgentConfig struct {
	// MaxAttempts bounds whole-operation retries; each retry restarts from
	// the initial unauthenticated request.
	MaxAttempts int
	// RetryDelay is the fixed backoff between whole-operation attempts.
	RetryDelay time.Duration
	// SettleDelay is waited after a purchase so the ledger's read path
	// catches up before the signed retry.
	SettleDelay time.Duration
	// EventWindow caps how many recent purchase events are scanned when
	// looking for an already-owned pass.
	EventWindow int
}

func (c AgentConfig) withDefaults() AgentConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.EventWindow <= 0 {
		c.EventWindow = 50
	}
	return c
}

// Result is the outcome of a successful access operation.
type Result struct {
	Body        []byte
	ContentType string
	PassID      string
}

// Agent is the caller-side orchestrator: it detects a 402, finds or
// purchases an AccessPass, signs proof headers, retries the request, and
// best-effort consumes the pass once content has been delivered.
type Agent struct {
	http     *http.Client
	ledger   ports.Ledger
	signer   ports.HeaderSigner
	funds    *Funds
	keys     ports.KeyService
	proofs   ports.SessionProofer
	contract ContractConfig
	cfg      AgentConfig
	clock    poll.Clock
	logger   *zap.Logger
}

// NewAgent creates a payment agent. httpClient may be nil, in which case a
// default client with a 30s timeout is used.
func NewAgent(httpClient *http.Client, ledger ports.Ledger, signer ports.HeaderSigner, funds *Funds, contract ContractConfig, cfg AgentConfig, clock poll.Clock, logger *zap.Logger) *Agent {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Agent{
		http:     httpClient,
		ledger:   ledger,
		signer:   signer,
		funds:    funds,
		contract: contract,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		logger:   logger,
	}
}

// WithDecryption enables decryption of encrypted content through the
// key-release service.
func (a *Agent) WithDecryption(keys ports.KeyService, proofs ports.SessionProofer) *Agent {
	a.keys = keys
	a.proofs = proofs
	return a
}

// Access fetches a protected URL, paying for an AccessPass when challenged.
// The whole operation is retried up to MaxAttempts with a fixed backoff;
// insufficient funds stop the retries early since waiting will not change
// the wallet.
func (a *Agent) Access(ctx context.Context, url string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			a.logger.Warn("access attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := a.clock.Sleep(ctx, a.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}

		res, err := a.access(ctx, url)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, core.ErrInsufficientFunds) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("access failed after %d attempts: %w", a.cfg.MaxAttempts, lastErr)
}

func (a *Agent) access(ctx context.Context, url string) (*Result, error) {
	status, body, contentType, encrypted, err := a.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return &Result{Body: body, ContentType: contentType}, nil
	}
	if status != http.StatusPaymentRequired {
		return nil, fmt.Errorf("unexpected status %d before payment", status)
	}

	var challenge core.PaymentChallenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse payment challenge: %w", err)
	}

	passID, err := a.findExistingPass(ctx, &challenge)
	if err != nil {
		return nil, err
	}
	if passID == "" {
		passID, err = a.purchasePass(ctx, &challenge)
		if err != nil {
			return nil, err
		}
		if err := a.clock.Sleep(ctx, a.cfg.SettleDelay); err != nil {
			return nil, err
		}
	}

	headers, err := a.signHeaders(passID, challenge.Domain, challenge.Resource)
	if err != nil {
		return nil, err
	}

	status, body, contentType, encrypted, err = a.get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("signed retry rejected with status %d", status)
	}

	// Consumption is an optimization to decrement remaining uses, not a
	// correctness requirement for content already delivered.
	a.consume(ctx, passID)

	if encrypted {
		body, err = a.decrypt(ctx, passID, &challenge, body)
		if err != nil {
			return nil, err
		}
	}

	return &Result{Body: body, ContentType: contentType, PassID: passID}, nil
}

func (a *Agent) get(ctx context.Context, url string, headers map[string]string) (status int, body []byte, contentType string, encrypted bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, "", false, fmt.Errorf("failed to build request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", false, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, resp.Header.Get("Content-Type"), resp.Header.Get(HeaderEncrypted) == "true", nil
}

// findExistingPass scans recent purchase events, newest first, for a usable
// pass this wallet already owns for the challenged scope. Re-buying an
// entitlement the caller already holds is the failure mode this avoids.
func (a *Agent) findExistingPass(ctx context.Context, challenge *core.PaymentChallenge) (string, error) {
	events, err := a.ledger.QueryEvents(ctx, ports.EventFilter{
		Type:       a.contract.PassPurchasedEventType(),
		Limit:      a.cfg.EventWindow,
		Descending: true,
	})
	if err != nil {
		var transient *ports.TransientError
		if errors.As(err, &transient) {
			// Event scan is an optimization; fall through to purchasing.
			a.logger.Debug("event query failed, skipping pass reuse", zap.Error(err))
			return "", nil
		}
		return "", fmt.Errorf("failed to query purchase events: %w", err)
	}

	owner := a.signer.Address()
	for _, event := range events {
		if event.Fields["owner"] != owner {
			continue
		}
		passID := event.Fields["pass_id"]
		if passID == "" {
			continue
		}
		obj, err := a.ledger.GetObject(ctx, passID)
		if err != nil {
			continue
		}
		pass, err := passFromObject(obj)
		if err != nil {
			continue
		}
		if pass.OwnedBy(owner) && pass.Matches(challenge.Domain, challenge.Resource) && pass.Usable(a.clock.Now()) {
			a.logger.Info("reusing existing pass", zap.String("passId", pass.ID))
			return pass.ID, nil
		}
	}
	return "", nil
}

// purchasePass buys a new pass for the challenged scope and returns its id.
func (a *Agent) purchasePass(ctx context.Context, challenge *core.PaymentChallenge) (string, error) {
	payment, err := a.funds.PaymentCoin(ctx, challenge.PriceInSmallestUnit)
	if err != nil {
		return "", err
	}

	call := ports.ContractCall{
		Target:       a.contract.PurchaseTarget(),
		Args:         []any{challenge.Domain, challenge.Resource, challenge.Nonce, challenge.Receiver},
		Payment:      payment.CoinID,
		SplitFromGas: payment.SplitFromGas,
	}
	tx, err := a.ledger.Call(ctx, call)
	if err != nil {
		return "", fmt.Errorf("purchase transaction failed: %w", err)
	}
	a.logger.Info("purchased pass",
		zap.String("digest", tx.Digest),
		zap.Uint64("price", challenge.PriceInSmallestUnit),
	)

	if len(tx.Created) > 0 {
		return tx.Created[0], nil
	}
	return a.locatePurchasedPass(ctx, challenge)
}

// locatePurchasedPass resolves the new pass id from purchase events when the
// transaction result did not report created objects.
func (a *Agent) locatePurchasedPass(ctx context.Context, challenge *core.PaymentChallenge) (string, error) {
	owner := a.signer.Address()
	cfg := poll.Config{Attempts: 5, Delay: a.cfg.SettleDelay, Backoff: 1}
	return poll.Do(ctx, a.clock, cfg, func(ctx context.Context) (string, bool, error) {
		events, err := a.ledger.QueryEvents(ctx, ports.EventFilter{
			Type:       a.contract.PassPurchasedEventType(),
			Limit:      a.cfg.EventWindow,
			Descending: true,
		})
		if err != nil {
			return "", false, nil
		}
		for _, event := range events {
			if event.Fields["owner"] == owner && event.Fields["nonce"] == challenge.Nonce {
				return event.Fields["pass_id"], true, nil
			}
		}
		return "", false, nil
	})
}

// consume decrements the pass's remaining-use counter. Failures are logged
// and swallowed.
func (a *Agent) consume(ctx context.Context, passID string) {
	_, err := a.ledger.Call(ctx, ports.ContractCall{
		Target: a.contract.ConsumeTarget(),
		Args:   []any{passID},
	})
	if err != nil {
		a.logger.Warn("best-effort consume failed", zap.String("passId", passID), zap.Error(err))
	}
}

// decrypt opens encrypted content via the key-release service, authorized
// by an on-chain approval transaction gated by the pass.
func (a *Agent) decrypt(ctx context.Context, passID string, challenge *core.PaymentChallenge, body []byte) ([]byte, error) {
	if a.keys == nil || a.proofs == nil {
		return nil, errors.New("content is encrypted but no key service is configured")
	}

	approvalTx, err := a.ledger.BuildCall(ctx, ports.ContractCall{
		Target: a.contract.ApproveTarget(),
		Args:   []any{passID, challenge.Domain, challenge.Resource},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build approval transaction: %w", err)
	}

	proof, err := a.proofs.Proof()
	if err != nil {
		return nil, fmt.Errorf("failed to mint session proof: %w", err)
	}

	plain, err := a.keys.Decrypt(ctx, body, proof, approvalTx)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plain, nil
}

func (a *Agent) signHeaders(passID, domain, resource string) (map[string]string, error) {
	timestamp := strconv.FormatInt(a.clock.Now().UnixMilli(), 10)
	msg := core.ProofMessage(passID, domain, resource, timestamp)
	sig, err := a.signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign proof headers: %w", err)
	}
	return map[string]string{
		core.HeaderPassID:    passID,
		core.HeaderSigner:    a.signer.Address(),
		core.HeaderSignature: hexutil.Encode(sig),
		core.HeaderTimestamp: timestamp,
	}, nil
}
