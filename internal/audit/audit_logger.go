package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	UserID        int64             `json:"user_id,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Amount        string            `json:"amount,omitempty"`
	Status        string            `json:"status"`
	Details       map[string]string `json:"details,omitempty"`
}

// AuditLogger writes one structured line per money-affecting event.
type AuditLogger struct {
	log zerolog.Logger
	now func() time.Time
}

func NewAuditLogger(base zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		log: base.With().Str("component", "audit").Logger(),
		now: time.Now,
	}
}

func (a *AuditLogger) LogSettlement(transactionID, userID int64, kind string, amount decimal.Decimal, status, receipt string) {
	event := AuditEvent{
		Timestamp:     a.now(),
		EventType:     "SETTLEMENT",
		TransactionID: transactionID,
		UserID:        userID,
		Kind:          kind,
		Amount:        amount.StringFixed(2),
		Status:        status,
	}
	if receipt != "" {
		event.Details = map[string]string{"receipt": receipt}
	}
	a.write(event)
}

func (a *AuditLogger) LogError(transactionID, userID int64, err error) {
	a.write(AuditEvent{
		Timestamp:     a.now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) LogOperation(transactionID, userID int64, operation, details string) {
	a.write(AuditEvent{
		Timestamp:     a.now(),
		EventType:     operation,
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *AuditLogger) write(event AuditEvent) {
	e := a.log.Info().
		Time("event_time", event.Timestamp).
		Str("event_type", event.EventType).
		Str("status", event.Status)
	if event.TransactionID != 0 {
		e = e.Int64("transaction_id", event.TransactionID)
	}
	if event.UserID != 0 {
		e = e.Int64("user_id", event.UserID)
	}
	if event.Kind != "" {
		e = e.Str("kind", event.Kind)
	}
	if event.Amount != "" {
		e = e.Str("amount", event.Amount)
	}
	for k, v := range event.Details {
		e = e.Str(k, v)
	}
	e.Msg("AUDIT")
}
