// Package eth provides signing and recovery helpers for the proof headers
// exchanged between the payment agent and the access verifier. Messages are
// hashed with the EIP-191 personal-sign prefix and signed with secp256k1.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the expected length of a serialized signature.
const SignatureLength = 65

// PersonalHash returns the EIP-191 prefixed keccak256 hash of msg.
func PersonalHash(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

// Sign signs msg with the given key and returns a 65-byte [R || S || V]
// signature with V in {27, 28}.
func Sign(msg []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(PersonalHash(msg), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[SignatureLength-1] += 27
	return sig, nil
}

// Recover returns the address that produced the given signature over msg.
func Recover(msg, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[SignatureLength-1] >= 27 {
		normalized[SignatureLength-1] -= 27
	}
	pub, err := crypto.SigToPub(PersonalHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignatureAgainstAddress reports whether sig over msg was produced by
// the key behind expected.
func VerifySignatureAgainstAddress(msg, sig []byte, expected common.Address) (bool, error) {
	recovered, err := Recover(msg, sig)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}

// CanonicalAddress lowercases a hex address to the canonical form used by
// the entitlement model.
func CanonicalAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
