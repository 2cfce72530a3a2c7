package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// maxBodyBytes bounds request bodies; ceremony responses are the largest
// payloads and stay well under this.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	body := errorBody{Code: string(code), Message: "internal error"}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Metadata = appErr.Metadata
	}
	writeJSON(w, code.HTTPStatus(), body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: message})
}
