package api

import "encoding/json"

// Envelope is the response shape shared by the companion and collaborator endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody carries a failure message.
type ErrorBody struct {
	Message string `json:"message"`
}

// OK builds a success envelope around data.
func OK(data any) map[string]any {
	out := map[string]any{"success": true}
	if data != nil {
		out["data"] = data
	}
	return out
}

// Fail builds a failure envelope.
func Fail(message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   ErrorBody{Message: message},
	}
}
