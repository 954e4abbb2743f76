// Package backend is the store boundary: an HTTP client for the
// remote order service. All durable state lives there; this client
// normalizes its loosely-shaped payloads into the internal schema on
// the way in.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/restxqr/kasa/internal/order"
	"github.com/restxqr/kasa/internal/printer"
)

// Errors returned by the client.
var (
	ErrSameTable     = errors.New("source and target table are the same")
	ErrRequestFailed = errors.New("backend request failed")
)

// Client talks to the order backend for one restaurant.
type Client struct {
	baseURL      string
	restaurantID string
	http         *http.Client
	log          *slog.Logger
}

// New creates a Client. timeout bounds every call; print-triggering
// calls share the same bound and are treated as failed when exceeded,
// never retried automatically.
func New(baseURL, restaurantID string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		restaurantID: restaurantID,
		http:         &http.Client{Timeout: timeout},
		log:          log,
	}
}

// UpdateResult is the backend's response to an order update; when the
// update triggered kitchen printing it carries per-station results.
type UpdateResult struct {
	Order        *order.Raw
	PrintResults []printer.StationResult
}

// PrintResponse is the backend's response to a manual print trigger.
type PrintResponse struct {
	Success bool                    `json:"success"`
	Steps   []string                `json:"steps"`
	Results []printer.StationResult `json:"results"`
}

// ListOrders fetches the restaurant's orders. Records that fail
// normalization are skipped with a warning rather than poisoning the
// whole snapshot.
func (c *Client) ListOrders(ctx context.Context) ([]*order.Raw, error) {
	u := fmt.Sprintf("%s/orders?restaurantId=%s", c.baseURL, url.QueryEscape(c.restaurantID))
	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var wires []wireOrder
	if err := decodePayload(body, &wires); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	orders := make([]*order.Raw, 0, len(wires))
	for i := range wires {
		o, err := wires[i].normalize()
		if err != nil {
			c.log.Warn("skipping malformed order", "error", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// UpdateOrder issues an idempotent PUT replacing the given fields.
func (c *Client) UpdateOrder(ctx context.Context, id string, upd order.Update) (*UpdateResult, error) {
	u := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(id))
	body, err := c.do(ctx, http.MethodPut, u, upd)
	if err != nil {
		return nil, err
	}

	var wire wireOrder
	if err := decodePayload(body, &wire); err != nil {
		return nil, fmt.Errorf("decode updated order: %w", err)
	}
	o, err := wire.normalize()
	if err != nil {
		return nil, fmt.Errorf("normalize updated order: %w", err)
	}
	return &UpdateResult{Order: o, PrintResults: wire.PrintResults}, nil
}

// DeleteOrder removes an order, used for rejecting erroneous or
// table-less orders.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(id))
	_, err := c.do(ctx, http.MethodDelete, u, nil)
	return err
}

// PrintOrder triggers a cloud print attempt for the order.
func (c *Client) PrintOrder(ctx context.Context, id string) (*PrintResponse, error) {
	u := fmt.Sprintf("%s/orders/%s/print", c.baseURL, url.PathEscape(id))
	body, err := c.do(ctx, http.MethodPost, u, struct{}{})
	if err != nil {
		return nil, err
	}

	var pr PrintResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode print response: %w", err)
	}
	return &pr, nil
}

// PrintReceipt triggers the post-payment customer receipt.
func (c *Client) PrintReceipt(ctx context.Context, id, cashierName string) error {
	u := fmt.Sprintf("%s/orders/%s/print-info", c.baseURL, url.PathEscape(id))
	_, err := c.do(ctx, http.MethodPost, u, map[string]string{"cashierName": cashierName})
	return err
}

// MergeTables moves all of the source table's items onto the target
// table's orders and clears the source. The backend performs the
// merge as a single operation; re-invoking after success finds
// nothing left to move.
func (c *Client) MergeTables(ctx context.Context, sourceTable, targetTable int) error {
	if sourceTable == targetTable {
		return ErrSameTable
	}

	u := fmt.Sprintf("%s/orders/merge", c.baseURL)
	_, err := c.do(ctx, http.MethodPost, u, map[string]any{
		"restaurantId":  c.restaurantID,
		"sourceTableId": sourceTable,
		"targetTableId": targetTable,
	})
	return err
}

// do performs one request and returns the response body, mapping
// non-2xx statuses to ErrRequestFailed.
func (c *Client) do(ctx context.Context, method, u string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		msg := ""
		if json.Unmarshal(body, &env) == nil {
			msg = env.Message
		}
		return nil, fmt.Errorf("%w: %s %s: status %d %s", ErrRequestFailed, method, u, resp.StatusCode, msg)
	}
	return body, nil
}
