package handlers

import (
	"context"
	"net/http"

	"github.com/chamapay/backend/internal/models"
	"github.com/chamapay/backend/internal/services"
	"github.com/shopspring/decimal"
)

type SavingsService interface {
	InitiateSaving(ctx context.Context, userID int64, amount decimal.Decimal, phone, description string) (*services.InitiateResult, error)
	DeleteSaving(ctx context.Context, userID, savingID int64) error
	ListSavings(ctx context.Context, userID int64, limit int) ([]models.Transaction, error)
}

type SavingsHandler struct {
	service   SavingsService
	validator *services.ValidationHelper
}

func NewSavingsHandler(service SavingsService) *SavingsHandler {
	return &SavingsHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type savingRequest struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"500"`
	PhoneNumber string          `json:"phoneNumber" validate:"required,msisdn" example:"0712345678"`
	Description string          `json:"description" validate:"max=255" example:"school fees"`
}

// InitiateSaving starts a savings deposit
// @Summary Deposit savings
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body savingRequest true "Saving request"
// @Success 202 {object} object{success=bool,data=services.InitiateResult}
// @Failure 400 {object} services.ErrorResponse
// @Router /savings [post]
func (h *SavingsHandler) InitiateSaving(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req savingRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.InitiateSaving(r.Context(), userID, req.Amount, req.PhoneNumber, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeInitiateResult(w, res)
}

// ListSavings
// @Summary List savings
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} object{success=bool,data=[]models.Transaction}
// @Router /savings [get]
func (h *SavingsHandler) ListSavings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListSavings(r.Context(), userID, listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// DeleteSaving removes a settled or failed saving
// @Summary Delete saving
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Saving transaction ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /savings/{id} [delete]
func (h *SavingsHandler) DeleteSaving(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	savingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSaving(r.Context(), userID, savingID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
