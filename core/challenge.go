package core

// SmallestUnitExponent is the ledger's fixed-point exponent: one whole
// currency unit equals 10^9 of the smallest unit.
const SmallestUnitExponent = 9

// PaymentChallenge is the 402 payload describing what a caller must pay, to
// whom, and the nonce binding a subsequent purchase to this challenge. It is
// ephemeral and never persisted server-side.
type PaymentChallenge struct {
	Status              int    `json:"status"`
	PaymentRequired     bool   `json:"paymentRequired"`
	Price               string `json:"price"`
	PriceInSmallestUnit uint64 `json:"priceInSmallestUnit"`
	Receiver            string `json:"receiver"`
	Domain              string `json:"domain"`
	Resource            string `json:"resource"`
	Nonce               string `json:"nonce"`
	PackageID           string `json:"packageId"`
	Module              string `json:"module"`
}

// Coin is a fungible value token in a caller's wallet. Splitting a coin
// consumes part of its balance into a newly created coin; the two balances
// sum to the original minus any fee charged when splitting from the
// fee-paying coin itself.
type Coin struct {
	ID      string
	Balance uint64
}
