package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

var emptyObject = json.RawMessage(`{}`)

// UnwrapResponse normalizes the gateway's two packaging conventions into one JSON value.
// Some deployments answer with {"statusCode":..., "body":"<json string>"}, others with the
// payload itself. A string body is parsed as JSON, a non-string body is used as is, anything
// else falls back to the top-level value. Empty input yields {}. Malformed JSON yields {} and
// ErrMalformedResponse; callers never see a partial value.
func UnwrapResponse(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return emptyObject, nil
	}
	if !json.Valid(raw) {
		return emptyObject, ErrMalformedResponse
	}
	if raw[0] != '{' {
		return json.RawMessage(raw), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return emptyObject, ErrMalformedResponse
	}
	body, ok := envelope["body"]
	if !ok || isNull(body) {
		return json.RawMessage(raw), nil
	}

	var encoded string
	if err := json.Unmarshal(body, &encoded); err != nil {
		// body already holds structured JSON
		return body, nil
	}
	inner := bytes.TrimSpace([]byte(encoded))
	if len(inner) == 0 {
		return emptyObject, nil
	}
	if !json.Valid(inner) {
		return emptyObject, ErrMalformedResponse
	}
	return json.RawMessage(inner), nil
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}

// errorField returns the "error" message of an object payload, if any.
func errorField(payload json.RawMessage) string {
	if len(payload) == 0 || payload[0] != '{' {
		return ""
	}
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || len(probe.Error) == 0 || isNull(probe.Error) {
		return ""
	}
	var msg string
	if err := json.Unmarshal(probe.Error, &msg); err == nil {
		return strings.TrimSpace(msg)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(probe.Error, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
