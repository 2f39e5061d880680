package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/chamapay/backend/internal/middleware"
	"github.com/chamapay/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object into dst and validates it. It
// writes the error response itself and reports whether the caller may go on.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid "+name, http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var cadence *services.CadenceError
	switch {
	case errors.As(err, &cadence):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         err.Error(),
			"nextAllowedAt": cadence.NextAllowedAt,
		})
	case errors.Is(err, services.ErrNotFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrInvalidLoanRequest),
		errors.Is(err, services.ErrRejectionReasonRequired),
		errors.Is(err, services.ErrRepaymentExceedsBalance):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrContributionInFlight),
		errors.Is(err, services.ErrOpenLoanExists),
		errors.Is(err, services.ErrLoanNotActive),
		errors.Is(err, services.ErrLoanNotPending),
		errors.Is(err, services.ErrPenaltyAlreadyPaid),
		errors.Is(err, services.ErrPenaltyPaymentInFlight),
		errors.Is(err, services.ErrTransactionPending):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	default:
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}

// writeInitiateResult answers 202 for an accepted prompt and 502 when the
// gateway turned it down.
func writeInitiateResult(w http.ResponseWriter, res *services.InitiateResult) {
	status := http.StatusAccepted
	if !res.Accepted {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"success": res.Accepted,
		"data":    res,
	})
}
