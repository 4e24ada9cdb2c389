package keyservice

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyProof(t *testing.T) {
	session, err := NewSessionKey("0xwallet", time.Minute)
	require.NoError(t, err)
	assert.False(t, session.Expired())

	proof, err := session.Proof()
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	// The proof parses as an ES256 JWT bound to the wallet.
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithAudience(AudienceSessionProof))
	token, _, err := parser.ParseUnverified(string(proof), claims)
	require.NoError(t, err)
	assert.Equal(t, "ES256", token.Method.Alg())
	assert.Equal(t, "0xwallet", claims.Wallet)
	assert.Equal(t, "0xwallet", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionKeyExpiry(t *testing.T) {
	session, err := NewSessionKey("0xwallet", -time.Second)
	require.NoError(t, err)
	assert.True(t, session.Expired())
}
