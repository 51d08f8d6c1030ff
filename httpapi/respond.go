package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quintal-io/authcore"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError maps a typed engine failure to its HTTP status class. Anything
// else is a 500 with no detail leaked to the client.
func writeError(w http.ResponseWriter, err error) {
	var typed *authcore.Error
	if errors.As(err, &typed) {
		writeJSON(w, typed.Status, errorResponse{Error: errorBody{
			Code:    typed.Code,
			Message: typed.Error(),
		}})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal error",
	}})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:    "BAD_REQUEST",
		Message: message,
	}})
}
