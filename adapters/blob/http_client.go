// Package blob implements the BlobStore port over the content store's HTTP
// read API.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/tollgate/ports"
)

// Client fetches content-addressed blobs over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a blob store client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchBlob downloads the blob stored under the content id.
func (c *Client) FetchBlob(ctx context.Context, contentID string) ([]byte, error) {
	endpoint := c.baseURL + "/v1/blobs/" + url.PathEscape(contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read blob body: %w", err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("blob %s: %w", contentID, ports.ErrBlobNotFound)
	default:
		return nil, fmt.Errorf("blob store returned status %d", resp.StatusCode)
	}
}
