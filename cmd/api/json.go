package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())
}

// envelope is the uniform response shape: status, an optional result count
// for listings, and the payload keyed by resource name.
type envelope struct {
	Status  string         `json:"status"`
	Results *int           `json:"results,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_576 // 1mb
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, envelope{Status: "error", Message: message})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, resource string, data any) error {
	return writeJSON(w, status, envelope{
		Status: "success",
		Data:   map[string]any{resource: data},
	})
}

// jsonListResponse reports a collection along with its result count.
func (app *application) jsonListResponse(w http.ResponseWriter, status int, resource string, data any, results int) error {
	return writeJSON(w, status, envelope{
		Status:  "success",
		Results: &results,
		Data:    map[string]any{resource: data},
	})
}
