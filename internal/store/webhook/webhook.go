// Package webhook stores transactions behind a single HTTP endpoint that
// dispatches on an "operation" field (load, save, delete).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"
	"bilancio/internal/store/memory"
)

const (
	DefaultTimeout = 10 * time.Second

	opLoad   = "load"
	opSave   = "save"
	opDelete = "delete"

	// maxResponseBytes bounds what a load may return.
	maxResponseBytes = 10 << 20
)

// Client is a TransactionStore talking to a webhook endpoint.
type Client struct {
	url   string
	owner string
	http  *http.Client
}

var _ store.TransactionStore = (*Client)(nil)

// New returns a client for url bound to owner. A nil httpClient gets a pooled
// client with the given timeout (DefaultTimeout when zero).
func New(url, owner string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(timeout)
	}
	return &Client{url: url, owner: owner, http: httpClient}, nil
}

// NewHTTPClient returns an http.Client with connection pooling suited to a
// single upstream host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type request struct {
	Operation   string      `json:"operation"`
	User        string      `json:"user"`
	Transaction *wireRecord `json:"transaction,omitempty"`
	ID          int64       `json:"id,omitempty"`
}

// wireRecord is a transaction as the webhook stores it; older rows carry the
// owner under "user". Rows hidden by a client carry "deleted".
type wireRecord struct {
	core.Transaction
	User    string `json:"user,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (r wireRecord) belongsTo(owner string) bool {
	if owner == "" {
		return true
	}
	return r.Owner == owner || r.User == owner
}

type loadResponse struct {
	Transactions json.RawMessage `json:"transactions"`
}

// LoadTransactions fetches the owner's transactions. Records that do not
// decode and records marked deleted are dropped.
func (c *Client) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	body, err := c.post(ctx, request{Operation: opLoad, User: c.owner})
	if err != nil {
		return nil, err
	}

	var resp loadResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode load response: %w", err)
		}
	}
	if len(resp.Transactions) == 0 || string(resp.Transactions) == "null" {
		return nil, nil
	}

	records, skipped, err := memory.DecodeRecords[wireRecord](resp.Transactions)
	if err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed webhook records", "skipped", skipped, "owner", c.owner)
	}

	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if r.Deleted || !r.belongsTo(c.owner) {
			continue
		}
		t := r.Transaction
		if t.Owner == "" {
			t.Owner = r.User
		}
		out = append(out, t)
	}
	return out, nil
}

// AppendTransaction sends a save operation. The webhook returns no row
// reference, so the transaction id stands in for one.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.Owner == "" {
		t.Owner = c.owner
	}
	rec := wireRecord{Transaction: t, User: t.Owner}
	if _, err := c.post(ctx, request{Operation: opSave, User: c.owner, Transaction: &rec}); err != nil {
		return "", err
	}
	return fmt.Sprintf("webhook:%d", t.ID), nil
}

// DeleteTransaction sends a delete operation, so the row is removed for every
// client rather than only hidden locally. A 404 maps to store.ErrNotFound.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := c.post(ctx, request{Operation: opDelete, User: c.owner, ID: id})
	return err
}

func (c *Client) post(ctx context.Context, payload request) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", payload.Operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", payload.Operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: %w", payload.Operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", payload.Operation, err)
	}
	slog.DebugContext(ctx, "Webhook call",
		"operation", payload.Operation,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound && payload.Operation == opDelete:
		return nil, fmt.Errorf("transaction %d: %w", payload.ID, store.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("webhook %s: unexpected status %d", payload.Operation, resp.StatusCode)
	}
	return body, nil
}
