// Package keyservice implements the KeyService port over the key-release
// service's HTTP API. Requests carry a session proof and the serialized
// on-chain approval transaction the service evaluates before releasing key
// material.
package keyservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/tollgate/ports"
)

// Client talks to the key-release service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a key-release client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type fetchKeysRequest struct {
	IDs        []string `json:"ids"`
	ApprovalTx string   `json:"approvalTx"`
	Proof      string   `json:"proof"`
	Threshold  int      `json:"threshold"`
}

type fetchKeysResponse struct {
	Keys []string `json:"keys"`
}

// FetchKeys requests decryption key shares for the given ids. The service
// evaluates the approval transaction against the caller's AccessPass before
// releasing anything.
func (c *Client) FetchKeys(ctx context.Context, ids []string, approvalTx []byte, proof ports.SessionProof, threshold int) ([][]byte, error) {
	req := fetchKeysRequest{
		IDs:        ids,
		ApprovalTx: base64.StdEncoding.EncodeToString(approvalTx),
		Proof:      string(proof),
		Threshold:  threshold,
	}

	var resp fetchKeysResponse
	if err := c.post(ctx, "/v1/keys", req, &resp); err != nil {
		return nil, err
	}

	keys := make([][]byte, 0, len(resp.Keys))
	for i, enc := range resp.Keys {
		key, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key share %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

type decryptRequest struct {
	Data       string `json:"data"`
	Proof      string `json:"proof"`
	ApprovalTx string `json:"approvalTx"`
}

type decryptResponse struct {
	Data string `json:"data"`
}

// Decrypt asks the service to decrypt data under the approval transaction.
func (c *Client) Decrypt(ctx context.Context, data []byte, proof ports.SessionProof, approvalTx []byte) ([]byte, error) {
	req := decryptRequest{
		Data:       base64.StdEncoding.EncodeToString(data),
		Proof:      string(proof),
		ApprovalTx: base64.StdEncoding.EncodeToString(approvalTx),
	}

	var resp decryptResponse
	if err := c.post(ctx, "/v1/decrypt", req, &resp); err != nil {
		return nil, err
	}

	plain, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode decrypted payload: %w", err)
	}
	return plain, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("key service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode key service response: %w", err)
	}
	return nil
}
