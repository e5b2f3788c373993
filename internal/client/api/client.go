// Package api is the wallet agent's HTTP client for the sync server REST
// endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/offpay/chainsync/internal/client/models"
	"github.com/offpay/chainsync/internal/common"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ConflictInfo is the per-record conflict slice of the server's sync report
// the wallet cares about.
type ConflictInfo struct {
	TransactionID       string `json:"transaction_id"`
	Type                string `json:"type"`
	Resolution          string `json:"resolution"`
	SuggestedResolution string `json:"suggested_resolution"`
}

// SyncReport mirrors the server's batch response.
type SyncReport struct {
	UserID           string          `json:"user_id"`
	Synced           int             `json:"synced"`
	Conflicted       int             `json:"conflicted"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
	ChainValid       bool            `json:"chain_valid"`
	Conflicts        []ConflictInfo  `json:"conflicts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	var apiErr errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	return resp.StatusCode, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
}

type registerDeviceRequest struct {
	UserID     string `json:"user_id"`
	PublicKey  []byte `json:"public_key"`
	PayloadKey []byte `json:"payload_key,omitempty"`
}

// RegisterDevice registers the wallet's key material with the server.
func (c *Client) RegisterDevice(ctx context.Context, userID string, publicKey, payloadKey []byte) error {
	status, err := c.postJSON(ctx, "/api/devices",
		registerDeviceRequest{UserID: userID, PublicKey: publicKey, PayloadKey: payloadKey}, nil)
	if status == http.StatusConflict {
		return common.ErrorAlreadyExists
	}
	return err
}

type syncRequest struct {
	Records []*models.Record `json:"records"`
}

// SubmitBatch posts the pending records and returns the server's report.
// Busy and circuit-breaker refusals come back as the matching sentinels so
// the caller can retry later or surface the repair workflow.
func (c *Client) SubmitBatch(ctx context.Context, userID string, recs []*models.Record) (*SyncReport, error) {
	report := &SyncReport{}
	status, err := c.postJSON(ctx, "/api/users/"+userID+"/sync", syncRequest{Records: recs}, report)
	switch status {
	case http.StatusConflict:
		return nil, common.ErrSyncInProgress
	case http.StatusLocked:
		return nil, common.ErrChainInvalidated
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
