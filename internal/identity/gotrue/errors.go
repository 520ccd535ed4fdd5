package gotrue

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/campusmarket/accountkit/internal/identity"
)

// errorEnvelope covers the GoTrue ({"code":400,"error_code","msg"}), legacy
// OAuth ({"error","error_description"}) and PostgREST
// ({"code":"PGRST116","message"}) error bodies.
type errorEnvelope struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func decodeError(status int, body []byte) *identity.Error {
	var env errorEnvelope
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &env) != nil {
		return &identity.Error{Status: status, Code: identity.CodeUnclassified, Message: http.StatusText(status)}
	}

	raw := env.ErrorCode
	if raw == "" {
		var s string
		if json.Unmarshal(env.Code, &s) == nil {
			raw = s
		}
	}
	if raw == "" {
		raw = env.Error
	}

	return &identity.Error{
		Status:  status,
		Code:    identity.ClassifyCode(raw),
		Message: firstNonEmpty(env.Msg, env.Message, env.ErrorDescription, env.Error, http.StatusText(status)),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
