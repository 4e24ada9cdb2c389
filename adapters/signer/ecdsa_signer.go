// Package signer implements caller-side proof header signing with a
// secp256k1 wallet key.
package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/tollgate/internal/eth"
	"github.com/layer-3/tollgate/ports"
)

// ECDSASigner signs proof messages with a wallet private key.
type ECDSASigner struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewECDSASigner creates a signer from a wallet private key.
func NewECDSASigner(key *ecdsa.PrivateKey) ports.HeaderSigner {
	return &ECDSASigner{
		key:     key,
		address: eth.CanonicalAddress(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// FromHex creates a signer from a hex-encoded private key.
func FromHex(hexKey string) (ports.HeaderSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewECDSASigner(key), nil
}

// Address returns the signer's canonical lowercase hex address.
func (s *ECDSASigner) Address() string { return s.address }

// Sign returns a 65-byte signature over msg.
func (s *ECDSASigner) Sign(msg []byte) ([]byte, error) {
	return eth.Sign(msg, s.key)
}
