package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/erazemk/lombard/internal/model"
)

// respond writes a successful envelope with the given status code.
func respond(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeEnvelope(w, r, status, model.Response[any]{
		Success: 1,
		Code:    status,
		Message: message,
		Data:    data,
	})
}

// fail writes an error envelope. The message is shown to users as is.
func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, model.Response[any]{
		Code:    status,
		Message: message,
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp model.Response[any]) {
	resp.Meta = &model.Meta{Endpoint: r.URL.Path, Method: r.Method}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encoding response", "endpoint", r.URL.Path, "error", err)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
