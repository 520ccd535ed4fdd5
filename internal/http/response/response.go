// Package response writes the JSON bodies of the identity server: the
// GoTrue shape under /auth/v1 and the PostgREST shape under /rest/v1.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campusmarket/accountkit/internal/identity"
)

// PostgRESTNoRows is the PostgREST code for a single-object request without a row.
const PostgRESTNoRows = identity.PostgRESTNoRows

type errorBody struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

type restErrorBody struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "write response failed", "error", err)
	}
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, r *http.Request, status int, code identity.Code, msg string) {
	JSON(w, r, status, errorBody{Code: status, ErrorCode: string(code), Msg: msg})
}

// AuthError renders err with the GoTrue envelope. Errors that are not an
// *identity.Error become a 500 without leaking their text.
func AuthError(w http.ResponseWriter, r *http.Request, err error) {
	status, e := classify(r, err)
	Error(w, r, status, e.Code, e.Message)
}

// RestError renders err with the PostgREST envelope.
func RestError(w http.ResponseWriter, r *http.Request, err error) {
	status, e := classify(r, err)
	code := string(e.Code)
	if e.Code == identity.CodeProfileNotFound {
		code = PostgRESTNoRows
	}
	JSON(w, r, status, restErrorBody{Code: code, Message: e.Message})
}

func classify(r *http.Request, err error) (int, *identity.Error) {
	var e *identity.Error
	if errors.As(err, &e) {
		status := e.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, e
	}
	slog.ErrorContext(r.Context(), "unhandled request error", "path", r.URL.Path, "error", err)
	return http.StatusInternalServerError, &identity.Error{Code: identity.CodeUnexpected, Message: "Internal server error"}
}
