package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/yield-ledger/internal/errors"
	"github.com/yield-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError categorizes a service error and sends it.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := apperrors.Categorize(err)
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Caller identity headers. Admin operations authenticate with
// X-Admin-Address; self-service operations with X-Caller-Address. Identity
// verification (signatures, sessions) sits in front of this service.
const (
	HeaderAdminAddress  = "X-Admin-Address"
	HeaderCallerAddress = "X-Caller-Address"
)

// callerAddress extracts and validates an address header.
func callerAddress(r *http.Request, header string) (common.Address, *apperrors.CategorizedError) {
	value := r.Header.Get(header)
	if value == "" {
		return common.Address{}, apperrors.NewUnauthorizedError("missing " + header + " header")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, apperrors.NewInvalidAddressError(value)
	}
	return common.HexToAddress(value), nil
}
