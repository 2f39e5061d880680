package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chamapay/backend/internal/gateway"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator with the "msisdn" tag registered.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	if err := v.RegisterValidation("msisdn", validMSISDN); err != nil {
		panic(fmt.Sprintf("register msisdn validation: %v", err))
	}
	return &ValidationHelper{validator: v}
}

func validMSISDN(fl validator.FieldLevel) bool {
	_, err := gateway.NormalizePhone(fl.Field().String())
	return err == nil
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
