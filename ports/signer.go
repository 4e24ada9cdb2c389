package ports

// HeaderSigner signs proof messages on the caller side.
type HeaderSigner interface {
	// Address returns the signer's canonical lowercase hex address.
	Address() string
	// Sign returns a serialized signature over the given message.
	Sign(msg []byte) ([]byte, error)
}
