package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/adapters/signer"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

const testPrice uint64 = 10_000_000

func testChallenge() core.PaymentChallenge {
	return core.PaymentChallenge{
		Status:              http.StatusPaymentRequired,
		PaymentRequired:     true,
		Price:               "0.01",
		PriceInSmallestUnit: testPrice,
		Receiver:            "0xreceiver",
		Domain:              testDomain,
		Resource:            testResource,
		Nonce:               "1700000000000-nonce",
		PackageID:           testContract.PackageID,
		Module:              testContract.Module,
	}
}

// newContentServer serves a 402 challenge until a request arrives with a
// complete, correctly signed proof header set.
func newContentServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	return newContentServerBody(t, hits, []byte("premium content"), false)
}

func newContentServerBody(t *testing.T, hits *atomic.Int32, body []byte, encrypted bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		headers := core.ProofHeaders{
			PassID:    r.Header.Get(core.HeaderPassID),
			Signer:    r.Header.Get(core.HeaderSigner),
			Signature: r.Header.Get(core.HeaderSignature),
			Timestamp: r.Header.Get(core.HeaderTimestamp),
		}
		if !headers.Complete() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(testChallenge())
			return
		}

		msg := core.ProofMessage(headers.PassID, testDomain, testResource, headers.Timestamp)
		sig, err := hexutil.Decode(headers.Signature)
		require.NoError(t, err)
		recovered, err := eth.Recover(msg, sig)
		require.NoError(t, err)
		if eth.CanonicalAddress(recovered) != headers.Signer {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		if encrypted {
			w.Header().Set(HeaderEncrypted, "true")
		}
		_, _ = w.Write(body)
	}))
}

// fakeKeyService returns a fixed plaintext and records what it was asked to
// decrypt.
type fakeKeyService struct {
	gotData  []byte
	gotProof ports.SessionProof
	gotTx    []byte
}

func (f *fakeKeyService) FetchKeys(ctx context.Context, ids []string, approvalTx []byte, proof ports.SessionProof, threshold int) ([][]byte, error) {
	return nil, nil
}

func (f *fakeKeyService) Decrypt(ctx context.Context, data []byte, proof ports.SessionProof, approvalTx []byte) ([]byte, error) {
	f.gotData = data
	f.gotProof = proof
	f.gotTx = approvalTx
	return []byte("premium plaintext"), nil
}

type fakeProofer struct{}

func (fakeProofer) Proof() (ports.SessionProof, error) { return "session-proof", nil }

func newTestAgent(t *testing.T, ledger *fakeLedger) (*Agent, *fakeClock, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	walletSigner := signer.NewECDSASigner(key)

	clock := &fakeClock{}
	funds := NewFunds(ledger, walletSigner.Address(), clock, zap.NewNop())
	agent := NewAgent(nil, ledger, walletSigner, funds, testContract, AgentConfig{}, clock, zap.NewNop())
	return agent, clock, walletSigner.Address()
}

func TestAgentPurchasesOn402(t *testing.T) {
	ledger := newFakeLedger()
	ledger.coins = []core.Coin{
		{ID: "big", Balance: 1_000_000_000},
		{ID: "mid", Balance: 500_000_000},
	}
	ledger.splitReportsCreated = true
	ledger.callResult = &ports.TxResult{Digest: "purchase", Created: []string{"pass-9"}}

	agent, clock, _ := newTestAgent(t, ledger)

	var hits atomic.Int32
	server := newContentServer(t, &hits)
	defer server.Close()

	result, err := agent.Access(context.Background(), server.URL+testResource)
	require.NoError(t, err)

	assert.Equal(t, "premium content", string(result.Body))
	assert.Equal(t, "pass-9", result.PassID)
	assert.Equal(t, int32(2), hits.Load())

	// One split, then purchase and best-effort consume.
	require.Len(t, ledger.splitCalls, 1)
	assert.Equal(t, uint64(testPrice), ledger.splitCalls[0].amount)
	require.Len(t, ledger.calls, 2)
	purchase := ledger.calls[0]
	assert.Equal(t, testContract.PurchaseTarget(), purchase.Target)
	assert.Equal(t, "split-1", purchase.Payment)
	assert.Contains(t, purchase.Args, "1700000000000-nonce")
	consume := ledger.calls[1]
	assert.Equal(t, testContract.ConsumeTarget(), consume.Target)
	assert.Equal(t, []any{"pass-9"}, consume.Args)

	// The settle delay ran between purchase and signed retry.
	assert.NotEmpty(t, clock.sleeps)
}

func TestAgentSingleCoinCombinesSplitAndPurchase(t *testing.T) {
	// Exactly one coin in the wallet: no separate split transaction, the
	// purchase itself carries the split-from-gas directive.
	ledger := newFakeLedger()
	ledger.coins = []core.Coin{{ID: "only", Balance: 1_000_000_000}}
	ledger.callResult = &ports.TxResult{Digest: "purchase", Created: []string{"pass-9"}}

	agent, _, _ := newTestAgent(t, ledger)

	var hits atomic.Int32
	server := newContentServer(t, &hits)
	defer server.Close()

	_, err := agent.Access(context.Background(), server.URL+testResource)
	require.NoError(t, err)

	assert.Empty(t, ledger.splitCalls)
	require.NotEmpty(t, ledger.calls)
	purchase := ledger.calls[0]
	assert.Equal(t, testContract.PurchaseTarget(), purchase.Target)
	assert.Empty(t, purchase.Payment)
	assert.Equal(t, uint64(testPrice), purchase.SplitFromGas)
}

func TestAgentReusesExistingPass(t *testing.T) {
	ledger := newFakeLedger()
	agent, _, owner := newTestAgent(t, ledger)

	existing := &core.AccessPass{
		ID:        "pass-owned",
		Owner:     owner,
		Domain:    testDomain,
		Resource:  testResource,
		Remaining: 2,
	}
	ledger.setPass(existing)
	ledger.events = []ports.Event{{
		Type:   testContract.PassPurchasedEventType(),
		Fields: map[string]string{"owner": owner, "pass_id": "pass-owned", "nonce": "old"},
	}}

	var hits atomic.Int32
	server := newContentServer(t, &hits)
	defer server.Close()

	result, err := agent.Access(context.Background(), server.URL+testResource)
	require.NoError(t, err)
	assert.Equal(t, "pass-owned", result.PassID)

	// No purchase: the only contract call is the best-effort consume.
	require.Len(t, ledger.calls, 1)
	assert.Equal(t, testContract.ConsumeTarget(), ledger.calls[0].Target)
}

func TestAgentConsumeFailureIsSwallowed(t *testing.T) {
	ledger := newFakeLedger()
	agent, _, owner := newTestAgent(t, ledger)

	existing := &core.AccessPass{
		ID:        "pass-owned",
		Owner:     owner,
		Domain:    testDomain,
		Resource:  testResource,
		Remaining: 2,
	}
	ledger.setPass(existing)
	ledger.events = []ports.Event{{
		Type:   testContract.PassPurchasedEventType(),
		Fields: map[string]string{"owner": owner, "pass_id": "pass-owned"},
	}}
	ledger.callErr = &ports.TransientError{Reason: "consume rejected"}

	var hits atomic.Int32
	server := newContentServer(t, &hits)
	defer server.Close()

	result, err := agent.Access(context.Background(), server.URL+testResource)
	require.NoError(t, err)
	assert.Equal(t, "premium content", string(result.Body))
}

func TestAgentDecryptsEncryptedContent(t *testing.T) {
	ledger := newFakeLedger()
	agent, _, owner := newTestAgent(t, ledger)

	existing := &core.AccessPass{
		ID:        "pass-owned",
		Owner:     owner,
		Domain:    testDomain,
		Resource:  testResource,
		Remaining: 2,
	}
	ledger.setPass(existing)
	ledger.events = []ports.Event{{
		Type:   testContract.PassPurchasedEventType(),
		Fields: map[string]string{"owner": owner, "pass_id": "pass-owned"},
	}}

	keys := &fakeKeyService{}
	agent.WithDecryption(keys, fakeProofer{})

	var hits atomic.Int32
	server := newContentServerBody(t, &hits, []byte("ciphertext"), true)
	defer server.Close()

	result, err := agent.Access(context.Background(), server.URL+testResource)
	require.NoError(t, err)
	assert.Equal(t, "premium plaintext", string(result.Body))

	// The key service saw the served ciphertext, the session proof, and the
	// approval transaction built for the pass.
	assert.Equal(t, []byte("ciphertext"), keys.gotData)
	assert.Equal(t, ports.SessionProof("session-proof"), keys.gotProof)
	assert.Equal(t, ledger.builtTx, keys.gotTx)
	require.Len(t, ledger.buildCalls, 1)
	approval := ledger.buildCalls[0]
	assert.Equal(t, testContract.ApproveTarget(), approval.Target)
	assert.Contains(t, approval.Args, "pass-owned")
}

func TestAgentEncryptedContentWithoutKeyServiceFails(t *testing.T) {
	ledger := newFakeLedger()
	agent, _, owner := newTestAgent(t, ledger)

	existing := &core.AccessPass{
		ID:        "pass-owned",
		Owner:     owner,
		Domain:    testDomain,
		Resource:  testResource,
		Remaining: 2,
	}
	ledger.setPass(existing)
	ledger.events = []ports.Event{{
		Type:   testContract.PassPurchasedEventType(),
		Fields: map[string]string{"owner": owner, "pass_id": "pass-owned"},
	}}

	var hits atomic.Int32
	server := newContentServerBody(t, &hits, []byte("ciphertext"), true)
	defer server.Close()

	_, err := agent.Access(context.Background(), server.URL+testResource)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no key service")
	assert.Empty(t, ledger.buildCalls)
}

func TestAgentInsufficientFundsStopsRetries(t *testing.T) {
	ledger := newFakeLedger()
	agent, clock, _ := newTestAgent(t, ledger)

	var hits atomic.Int32
	server := newContentServer(t, &hits)
	defer server.Close()

	_, err := agent.Access(context.Background(), server.URL+testResource)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, clock.sleeps)
}
