package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chamapay/backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxResponseBytes = 1 << 20

var failedStatuses = map[string]bool{
	"failed":    true,
	"cancelled": true,
	"canceled":  true,
	"timeout":   true,
	"expired":   true,
}

// Client talks to the STK push proxy.
type Client struct {
	cfg        *config.GatewayConfig
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg *config.GatewayConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// Initiate sends a payment prompt to the member's phone. Only invalid input
// returns an error; provider or transport failures come back as a result
// with Accepted=false. Initiation is never retried.
func (c *Client) Initiate(ctx context.Context, phone string, amount decimal.Decimal, reference string) (InitiateResult, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return InitiateResult{}, err
	}
	if !amount.IsPositive() {
		return InitiateResult{}, fmt.Errorf("amount must be positive, got %s", amount)
	}

	payload := initiateRequest{
		PhoneNumber: normalized,
		Amount:      amount.Ceil().StringFixed(0),
		Reference:   reference,
	}

	var resp initiateResponse
	status, err := c.post(ctx, c.cfg.InitiatePath, payload, &resp)
	if err != nil {
		c.log.Warn().Err(err).Str("reference", reference).Msg("payment prompt failed")
		return InitiateResult{Reason: err.Error()}, nil
	}
	if status < 200 || status > 299 {
		return InitiateResult{Reason: fmt.Sprintf("gateway returned status %d", status)}, nil
	}
	if resp.CheckoutRequestID == "" {
		reason := firstNonEmpty(resp.Message, resp.ResponseDesc, "gateway did not return a checkout id")
		return InitiateResult{Reason: reason}, nil
	}

	c.log.Info().
		Str("reference", reference).
		Str("checkout_request_id", resp.CheckoutRequestID).
		Msg("payment prompt accepted")

	return InitiateResult{Accepted: true, CorrelationID: resp.CheckoutRequestID}, nil
}

// Verify asks the provider for the current state of a prompt. Errors are
// transient and the caller should poll again.
func (c *Client) Verify(ctx context.Context, correlationID string) (VerifyResult, error) {
	var resp verifyResponse
	status, err := c.post(ctx, c.cfg.VerifyPath, verifyRequest{CheckoutRequestID: correlationID}, &resp)
	if err != nil {
		return VerifyResult{}, err
	}
	if status < 200 || status > 299 {
		return VerifyResult{}, fmt.Errorf("verify returned status %d", status)
	}
	return mapVerify(resp), nil
}

func mapVerify(resp verifyResponse) VerifyResult {
	status := strings.ToLower(strings.TrimSpace(resp.Status))

	switch {
	case status == "pending":
		return VerifyResult{Outcome: OutcomePending}
	case status == "completed" && resp.Data != nil:
		if resp.Data.ResultCode != 0 {
			return VerifyResult{Outcome: OutcomeFailed, Reason: firstNonEmpty(resp.Data.ResultDesc, resp.Message, "payment failed")}
		}
		if resp.Success && resp.Data.MpesaReceiptNumber != "" {
			return VerifyResult{Outcome: OutcomeSucceeded, ReceiptRef: resp.Data.MpesaReceiptNumber}
		}
		return VerifyResult{Outcome: OutcomePending, Reason: "completed without receipt"}
	case failedStatuses[status]:
		reason := resp.Message
		if resp.Data != nil {
			reason = firstNonEmpty(resp.Data.ResultDesc, reason)
		}
		return VerifyResult{Outcome: OutcomeFailed, Reason: firstNonEmpty(reason, status)}
	}

	return VerifyResult{Outcome: OutcomePending, Reason: "unrecognised status " + status}
}

func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, errors.Join(errors.New("unparsable gateway response"), err)
	}
	return resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
