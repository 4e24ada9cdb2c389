package core

import (
	"strings"
	"time"
)

// AccessPass represents a paid entitlement to a single protected resource.
// Passes are created by a purchase transaction on the ledger and are never
// mutated by this service; the remaining-use counter is decremented by a
// separate consume transaction after content has been served.
type AccessPass struct {
	ID        string // Ledger object identifier
	Owner     string // Address that paid for the pass
	Domain    string // Domain the pass is scoped to
	Resource  string // Resource path the pass is scoped to
	Remaining uint64 // Remaining uses
	Expiry    int64  // Expiry in unix milliseconds; 0 means never expires
	Nonce     string // Nonce of the challenge that spawned the purchase
	PricePaid uint64 // Price paid, in the smallest currency unit
}

// Usable reports whether the pass still has uses left and has not expired.
func (p *AccessPass) Usable(now time.Time) bool {
	if p.Remaining == 0 {
		return false
	}
	return p.Expiry == 0 || now.UnixMilli() < p.Expiry
}

// Matches reports whether the pass is scoped to the given domain and
// resource. Domains compare exactly; resources compare after trailing-slash
// normalization.
func (p *AccessPass) Matches(domain, resource string) bool {
	return p.Domain == domain && NormalizeResource(p.Resource) == NormalizeResource(resource)
}

// OwnedBy reports whether the pass belongs to the given signer identity.
// Addresses are canonical lowercase hex, so comparison is case-sensitive.
func (p *AccessPass) OwnedBy(signer string) bool {
	return p.Owner == signer
}

// NormalizeResource strips a single trailing slash from a resource path.
// The root path "/" is left untouched.
func NormalizeResource(resource string) string {
	if resource == "/" {
		return resource
	}
	return strings.TrimSuffix(resource, "/")
}

// ResourceEntry is a registry record mapping a protected (domain, resource)
// pair to its content locator and pricing. Entries are written by the
// registration surface and read-only to the payment protocol.
type ResourceEntry struct {
	Domain    string `json:"domain"`
	Resource  string `json:"resource"`
	ContentID string `json:"contentId"` // Content-addressed blob identifier
	PolicyID  string `json:"policyId"`  // Key-release policy identifier
	Price     string `json:"price"`     // Decimal price in whole currency units
	Encrypted bool   `json:"encrypted"`
}
