package gateway

import (
	"bytes"
	"strconv"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// InitiateResult is the provider's answer to a payment prompt. A rejected
// prompt is a normal result, not an error.
type InitiateResult struct {
	Accepted      bool
	CorrelationID string
	Reason        string
}

type VerifyResult struct {
	Outcome    Outcome
	ReceiptRef string
	Reason     string
}

type initiateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      string `json:"amount"`
	Reference   string `json:"reference"`
}

type initiateResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	Message           string `json:"message"`
	ResponseDesc      string `json:"ResponseDescription"`
}

type verifyRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

type verifyResponse struct {
	Success bool        `json:"success"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    *verifyData `json:"data"`
}

type verifyData struct {
	ResultCode         ResultCode `json:"ResultCode"`
	ResultDesc         string     `json:"ResultDesc"`
	MpesaReceiptNumber string     `json:"MpesaReceiptNumber"`
}

// ResultCode accepts the provider's result code as either a JSON number or a
// quoted string.
type ResultCode int

func (c *ResultCode) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = -1
		return nil
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*c = ResultCode(v)
	return nil
}
