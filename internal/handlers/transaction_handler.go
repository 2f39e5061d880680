package handlers

import (
	"context"
	"net/http"

	"github.com/chamapay/backend/internal/models"
	"github.com/chamapay/backend/internal/services"
)

type TransactionVerifier interface {
	VerifyForUser(ctx context.Context, userID int64, correlationID string) (*models.Transaction, error)
}

type TransactionHandler struct {
	verifier  TransactionVerifier
	validator *services.ValidationHelper
}

func NewTransactionHandler(verifier TransactionVerifier) *TransactionHandler {
	return &TransactionHandler{
		verifier:  verifier,
		validator: services.NewValidationHelper(),
	}
}

type verifyRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" validate:"required" example:"ws_CO_191220191020363925"`
}

// VerifyTransaction reconciles a pending payment on demand
// @Summary Verify transaction
// @Description Asks the gateway for the payment's state and settles it if final. Returns the current transaction.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body verifyRequest true "Verify request"
// @Success 200 {object} object{success=bool,data=models.Transaction}
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/verify [post]
func (h *TransactionHandler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	t, err := h.verifier.VerifyForUser(r.Context(), userID, req.CheckoutRequestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": t})
}
