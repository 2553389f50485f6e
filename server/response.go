package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// Error codes returned in the error envelope besides the compiler codes.
const (
	CodeNoAuth        = "NO_AUTH"
	CodeNoPolicy      = "NO_POLICY"
	CodeInvalidPolicy = "INVALID_STORED_POLICY"
	CodeBodyTooLarge  = "BODY_TOO_LARGE"
	CodeInternal      = "INTERNAL_ERROR"
)

// ErrorBody is the error envelope of the operator API.
type ErrorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: true, Message: message, Code: code})
}

// writePolicyError maps engine errors onto the envelope. Configuration
// errors are the caller's fault and carry the compiler code.
func writePolicyError(w http.ResponseWriter, err error) {
	if cfgErr, ok := gatekeeper.AsConfigError(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorBody{
			Error:   true,
			Message: cfgErr.Error(),
			Code:    string(cfgErr.Code),
			Line:    cfgErr.Line,
		})
		return
	}

	if errors.Is(err, gatekeeper.ErrStoredPolicyInvalid) {
		writeError(w, http.StatusConflict, CodeInvalidPolicy, err.Error())
		return
	}

	log.Errorf("policy request failed: %v", err)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
