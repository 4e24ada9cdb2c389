package core

import "errors"

var (
	ErrPaymentRequired   = errors.New("payment required")
	ErrPassNotFound      = errors.New("access pass not found")
	ErrOwnerMismatch     = errors.New("access pass owner mismatch")
	ErrScopeMismatch     = errors.New("access pass scope mismatch")
	ErrPassExpired       = errors.New("access pass has expired")
	ErrNoRemainingUses   = errors.New("access pass has no remaining uses")
	ErrBadSignature      = errors.New("signature verification failed")
	ErrInsufficientFunds = errors.New("insufficient funds for payment and fees")
)
