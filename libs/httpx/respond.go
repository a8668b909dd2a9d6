package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every rejected request. Reason is a stable
// machine-readable code; Fields lists offending request fields when known.
type ErrorBody struct {
	Error  string   `json:"error"`
	Reason string   `json:"reason,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg, reason string, fields []string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Reason: reason, Fields: fields})
}

// DecodeJSON decodes a request body and rejects unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
