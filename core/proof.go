package core

import "fmt"

// Proof header names carried on authenticated retries.
const (
	HeaderPassID    = "x-pass-id"
	HeaderSigner    = "x-signer"
	HeaderSignature = "x-sig"
	HeaderTimestamp = "x-ts"
)

// ProofHeaders carries the four headers a caller presents to prove ownership
// of an AccessPass. A request missing any one of them is treated the same as
// a request missing all of them.
type ProofHeaders struct {
	PassID    string
	Signer    string
	Signature string
	Timestamp string
}

// Complete reports whether all four proof headers are present.
func (h ProofHeaders) Complete() bool {
	return h.PassID != "" && h.Signer != "" && h.Signature != "" && h.Timestamp != ""
}

// ProofMessage builds the canonical message a caller signs to prove it owns
// the pass for the given scope. Verifier and signer must agree on this exact
// byte layout.
func ProofMessage(passID, domain, resource, timestamp string) []byte {
	return fmt.Appendf(nil, "tollgate|v1|%s|%s|%s|%s", passID, domain, NormalizeResource(resource), timestamp)
}
