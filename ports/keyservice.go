package ports

import "context"

// SessionProof is a short-lived credential authorizing an ephemeral session
// key to request key material on behalf of a wallet address.
type SessionProof string

// SessionProofer mints session proofs for key-release requests.
type SessionProofer interface {
	Proof() (SessionProof, error)
}

// KeyService is the external key-release service gating decryption keys
// behind an on-chain approval check. The approval transaction is a contract
// call gated by a valid AccessPass; the service evaluates it without
// executing it.
type KeyService interface {
	FetchKeys(ctx context.Context, ids []string, approvalTx []byte, proof SessionProof, threshold int) ([][]byte, error)
	Decrypt(ctx context.Context, data []byte, proof SessionProof, approvalTx []byte) ([]byte, error)
}
