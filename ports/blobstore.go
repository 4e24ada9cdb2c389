package ports

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when the content store has no blob under the
// requested content id.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the external content-addressed blob store.
type BlobStore interface {
	FetchBlob(ctx context.Context, contentID string) ([]byte, error)
}
