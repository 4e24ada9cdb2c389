package ports

import (
	"context"
	"errors"

	"github.com/layer-3/tollgate/core"
)

// ErrEntryNotFound is returned when no resource is registered under the
// requested (domain, resource) pair.
var ErrEntryNotFound = errors.New("resource entry not found")

// Registry stores the gateway's protected-resource entries. The payment
// protocol reads entries; only the registration surface writes them.
type Registry interface {
	Lookup(ctx context.Context, domain, resource string) (*core.ResourceEntry, error)
	Put(ctx context.Context, entry *core.ResourceEntry) error
	List(ctx context.Context, domain string) ([]core.ResourceEntry, error)
}
