package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrBridgePrint means the bridge reached the printer path but the
// job did not print.
var ErrBridgePrint = errors.New("bridge print failed")

// BridgeClient talks to the local printer bridge process
// (conventionally http://localhost:3005 on the register workstation).
type BridgeClient struct {
	baseURL string
	http    *http.Client
}

// NewBridgeClient creates a client with the given request timeout.
// A print call exceeding the timeout is treated as a failure and is
// not retried.
func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type bridgeResponse struct {
	Success   bool   `json:"success"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Print relays one kitchen job to the printer at the given IP.
func (c *BridgeClient) Print(ctx context.Context, ip string, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal bridge job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/print/%s", c.baseURL, ip), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	var br bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	if !br.Success {
		if br.Error != "" {
			return fmt.Errorf("%w: %s", ErrBridgePrint, br.Error)
		}
		return ErrBridgePrint
	}
	return nil
}

// Status probes whether the printer at the given IP is reachable
// through the bridge.
func (c *BridgeClient) Status(ctx context.Context, ip string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/status/%s", c.baseURL, ip), nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	var br bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return false, fmt.Errorf("decode status response: %w", err)
	}
	return br.Success && br.Connected, nil
}
