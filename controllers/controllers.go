package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/services"
)

// Controllers holds all controller instances.
type Controllers struct {
	Ask   *AskController
	Queue *QueueController
	Admin *AdminController
}

// NewControllers creates and initializes all controller instances.
func NewControllers(services *services.Services, store *database.Store) *Controllers {
	return &Controllers{
		Ask:   NewAskController(services),
		Queue: NewQueueController(services),
		Admin: NewAdminController(services, store),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it.
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// errorBody is the JSON shape for plain HTTP-level failures (malformed
// requests, unknown routes). Domain outcomes ride in the response status
// field instead.
type errorBody struct {
	Error string `json:"error"`
}
