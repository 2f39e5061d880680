package handlers

import (
	"context"
	"net/http"

	"github.com/chamapay/backend/internal/models"
	"github.com/chamapay/backend/internal/services"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	ApplyForLoan(ctx context.Context, userID int64, amount decimal.Decimal, durationMonths int, usage string) (*models.Loan, error)
	ApproveLoan(ctx context.Context, loanID, adminID int64) (*models.Loan, error)
	RejectLoan(ctx context.Context, loanID, adminID int64, reason string) (*models.Loan, error)
	InitiateLoanRepayment(ctx context.Context, userID, loanID int64, amount decimal.Decimal, phone string) (*services.InitiateResult, error)
	GetLoan(ctx context.Context, userID, loanID int64) (*models.Loan, error)
	ListLoans(ctx context.Context, userID int64) ([]models.Loan, error)
	ListLoansByStatus(ctx context.Context, status models.LoanStatus, limit int) ([]models.Loan, error)
}

type LoanHandler struct {
	service   LoanService
	validator *services.ValidationHelper
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type loanApplicationRequest struct {
	Amount         decimal.Decimal `json:"amount" swaggertype:"number" example:"1000"`
	DurationMonths int             `json:"durationMonths" validate:"required,min=1,max=12" example:"3"`
	LoanUsage      string          `json:"loanUsage" validate:"required,min=5,max=500" example:"school fees"`
}

type repaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"100"`
	PhoneNumber string          `json:"phoneNumber" validate:"required,msisdn" example:"0712345678"`
}

type rejectLoanRequest struct {
	Reason string `json:"reason" validate:"required" example:"insufficient savings history"`
}

// ApplyForLoan opens a loan application
// @Summary Apply for loan
// @Description Opens a pending loan. Interest is fixed at application time.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body loanApplicationRequest true "Loan application"
// @Success 201 {object} object{success=bool,data=models.Loan}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /loans [post]
func (h *LoanHandler) ApplyForLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req loanApplicationRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	loan, err := h.service.ApplyForLoan(r.Context(), userID, req.Amount, req.DurationMonths, req.LoanUsage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": loan})
}

// ListLoans
// @Summary List my loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=[]models.Loan}
// @Router /loans [get]
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	loans, err := h.service.ListLoans(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": loans})
}

// ListAllLoans
// @Summary List loans across members
// @Description Loans awaiting a decision are listed with status=pending.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Loan status" Enums(pending, approved, rejected, paid, overdue)
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} object{success=bool,data=[]models.Loan}
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/loans [get]
func (h *LoanHandler) ListAllLoans(w http.ResponseWriter, r *http.Request) {
	status := models.LoanStatus(r.URL.Query().Get("status"))

	loans, err := h.service.ListLoansByStatus(r.Context(), status, listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": loans})
}

// GetLoan
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} object{success=bool,data=models.Loan}
// @Failure 404 {object} services.ErrorResponse
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), userID, loanID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": loan})
}

// RepayLoan starts a loan repayment
// @Summary Repay loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body repaymentRequest true "Repayment request"
// @Success 202 {object} object{success=bool,data=services.InitiateResult}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /loans/{id}/repayments [post]
func (h *LoanHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req repaymentRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.InitiateLoanRepayment(r.Context(), userID, loanID, req.Amount, req.PhoneNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeInitiateResult(w, res)
}

// ApproveLoan
// @Summary Approve loan
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} object{success=bool,data=models.Loan}
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/loans/{id}/approve [post]
func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.service.ApproveLoan(r.Context(), loanID, adminID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": loan})
}

// RejectLoan
// @Summary Reject loan
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param request body rejectLoanRequest true "Rejection reason"
// @Success 200 {object} object{success=bool,data=models.Loan}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/loans/{id}/reject [post]
func (h *LoanHandler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req rejectLoanRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	loan, err := h.service.RejectLoan(r.Context(), loanID, adminID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": loan})
}
