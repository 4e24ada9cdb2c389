package keyservice

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/tollgate/ports"
)

const AudienceSessionProof = "tollgate:keys"

// SessionClaims combines standard claims with session-proof-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet"` // Wallet address the session key acts for
}

// SessionKey is an ephemeral P-256 key authorized to request key material on
// behalf of a wallet for a bounded time window.
type SessionKey struct {
	key     *ecdsa.PrivateKey
	wallet  string
	ttl     time.Duration
	expires time.Time
}

// NewSessionKey generates a fresh session key for the wallet address.
func NewSessionKey(wallet string, ttl time.Duration) (*SessionKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return &SessionKey{
		key:     key,
		wallet:  wallet,
		ttl:     ttl,
		expires: time.Now().Add(ttl),
	}, nil
}

// Expired reports whether the session key's window has closed.
func (s *SessionKey) Expired() bool {
	return time.Now().After(s.expires)
}

// Proof mints a session proof: an ES256 JWT over the ephemeral key binding
// it to the wallet address for the remaining window.
func (s *SessionKey) Proof() (ports.SessionProof, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.wallet,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.expires),
			Audience:  jwt.ClaimStrings{AudienceSessionProof},
		},
		Wallet: s.wallet,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session proof: %w", err)
	}
	return ports.SessionProof(signed), nil
}
