// Package service implements the payment protocol: challenge issuance,
// access verification, fund selection and splitting, and the caller-side
// payment agent.
package service

// ContractConfig identifies the on-chain access contract and the receiver of
// payments. It is passed explicitly into every component that needs it.
type ContractConfig struct {
	PackageID string
	Module    string
	Receiver  string
}

func (c ContractConfig) target(fn string) string {
	return c.PackageID + "::" + c.Module + "::" + fn
}

// PurchaseTarget is the contract function that mints an AccessPass in
// exchange for an exact-amount payment coin.
func (c ContractConfig) PurchaseTarget() string { return c.target("purchase_pass") }

// ConsumeTarget is the contract function that decrements a pass's
// remaining-use counter.
func (c ContractConfig) ConsumeTarget() string { return c.target("consume_pass") }

// ApproveTarget is the contract function the key-release service evaluates
// to check that a pass authorizes decryption.
func (c ContractConfig) ApproveTarget() string { return c.target("approve_release") }

// PassPurchasedEventType is the event emitted for every minted pass.
func (c ContractConfig) PassPurchasedEventType() string {
	return c.PackageID + "::" + c.Module + "::PassPurchased"
}
