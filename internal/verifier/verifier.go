// Package verifier wraps the external payment-slip verification
// vendor behind a small interface.  The vendor's API is treated as
// opaque: the core only cares whether the proof is a real payment,
// for what amount, when, and under which transaction reference.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the verifier's determination for one proof.  Valid=false
// with a Reason is a definitive negative (not a payment, bad image,
// duplicate); transport-level problems are reported as errors instead
// so callers can fail open on them.
type Result struct {
	Valid       bool      `json:"valid"`
	Reason      string    `json:"reason,omitempty"`
	Amount      float64   `json:"amount"`
	ExternalRef string    `json:"transaction_ref"`
	PaidAt      time.Time `json:"paid_at"`
	Raw         string    `json:"-"` // raw response body, kept for the audit ledger
}

// Verifier is the contract the verification pipeline depends on.
type Verifier interface {
	Verify(ctx context.Context, proofRef string, claimedAmount float64) (*Result, error)
}

// Client calls the vendor's HTTP API.  The API key and base URL are
// deployment-scoped configuration.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a vendor client with a bounded request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Verify submits the proof reference and claimed amount.  The call is
// idempotent on the vendor side, so one retry is attempted on
// transport errors and 5xx responses before giving up.
func (c *Client) Verify(ctx context.Context, proofRef string, claimedAmount float64) (*Result, error) {
	res, err := c.verifyOnce(ctx, proofRef, claimedAmount)
	if err != nil {
		res, err = c.verifyOnce(ctx, proofRef, claimedAmount)
	}
	return res, err
}

func (c *Client) verifyOnce(ctx context.Context, proofRef string, claimedAmount float64) (*Result, error) {
	body, err := json.Marshal(map[string]any{
		"proof_url": proofRef,
		"amount":    claimedAmount,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("verifier response read: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("verifier unavailable: status %d", resp.StatusCode)
	}

	var parsed struct {
		Valid          bool    `json:"valid"`
		Reason         string  `json:"reason"`
		Amount         float64 `json:"amount"`
		TransactionRef string  `json:"transaction_ref"`
		PaidAt         string  `json:"paid_at"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("verifier response decode: %w", err)
	}
	out := &Result{
		Valid:       parsed.Valid,
		Reason:      parsed.Reason,
		Amount:      parsed.Amount,
		ExternalRef: parsed.TransactionRef,
		Raw:         string(raw),
	}
	if parsed.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, parsed.PaidAt); err == nil {
			out.PaidAt = t.UTC()
		}
	}
	// Non-5xx rejections (400s with a parseable body) are definitive
	// negatives, not transport failures.
	if resp.StatusCode >= 400 && out.Reason == "" {
		out.Valid = false
		out.Reason = fmt.Sprintf("verifier rejected proof (status %d)", resp.StatusCode)
	}
	return out, nil
}
