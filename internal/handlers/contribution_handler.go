package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/chamapay/backend/internal/models"
	"github.com/chamapay/backend/internal/services"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ContributionService is the part of the contribution ledger the HTTP API uses.
type ContributionService interface {
	InitiateContribution(ctx context.Context, userID int64, amount decimal.Decimal, phone string) (*services.InitiateResult, error)
	InitiatePenaltyPayment(ctx context.Context, userID, missedID int64, phone string) (*services.InitiateResult, error)
	ListUnpaidPenalties(ctx context.Context, userID int64) ([]models.MissedContribution, error)
	ListContributions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error)
}

type ContributionHandler struct {
	service   ContributionService
	validator *services.ValidationHelper
}

func NewContributionHandler(service ContributionService) *ContributionHandler {
	return &ContributionHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type contributionRequest struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"20"`
	PhoneNumber string          `json:"phoneNumber" validate:"required,msisdn" example:"0712345678"`
}

type penaltyPaymentRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,msisdn" example:"0712345678"`
}

// InitiateContribution starts today's contribution
// @Summary Make daily contribution
// @Description Prompts the member's phone for the daily contribution. Amount defaults to 20 when omitted.
// @Tags Contributions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body contributionRequest true "Contribution request"
// @Success 202 {object} object{success=bool,data=services.InitiateResult}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} object{success=bool,data=services.InitiateResult}
// @Router /contributions [post]
func (h *ContributionHandler) InitiateContribution(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req contributionRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.InitiateContribution(r.Context(), userID, req.Amount, req.PhoneNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeInitiateResult(w, res)
}

// ListContributions returns the member's recent contributions
// @Summary List contributions
// @Tags Contributions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} object{success=bool,data=[]models.Transaction}
// @Router /contributions [get]
func (h *ContributionHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListContributions(r.Context(), userID, listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// ListPenalties returns unpaid missed-day penalties
// @Summary List unpaid penalties
// @Tags Penalties
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=[]models.MissedContribution}
// @Router /penalties [get]
func (h *ContributionHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListUnpaidPenalties(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []models.MissedContribution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// PayPenalty pays one missed-day penalty
// @Summary Pay penalty
// @Tags Penalties
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Missed contribution ID"
// @Param request body penaltyPaymentRequest true "Payment request"
// @Success 202 {object} object{success=bool,data=services.InitiateResult}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /penalties/{id}/pay [post]
func (h *ContributionHandler) PayPenalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	missedID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req penaltyPaymentRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.InitiatePenaltyPayment(r.Context(), userID, missedID, req.PhoneNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeInitiateResult(w, res)
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
