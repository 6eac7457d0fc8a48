// Package httputil writes JSON responses and maps coded errors to HTTP
// statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/navikt/amt-deltaker-sub001/pkg/apperrors"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
)

// WriteJSON serializes v with the given status. Encoding failures are
// swallowed; the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError maps err to a status and JSON body. Internal errors never leak
// their message to the client. Bare sentinel.ErrNotFound from stores maps to
// 404 so handlers do not have to re-wrap it.
func WriteError(w http.ResponseWriter, err error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			WriteJSON(w, http.StatusNotFound, errorBody{Error: string(apperrors.CodeNotFound)})
			return
		}
	}

	status := apperrors.HTTPStatus(err)
	body := errorBody{Error: string(apperrors.CodeInternal)}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Error = string(appErr.Code)
		if status < http.StatusInternalServerError {
			body.ErrorDescription = appErr.Message
		}
	}
	WriteJSON(w, status, body)
}
