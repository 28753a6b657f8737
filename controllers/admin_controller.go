package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/services"
)

// AdminController handles the operator surface: manual refresh triggers
// and snapshot staleness reporting.
type AdminController struct {
	services *services.Services
	store    *database.Store
}

// NewAdminController creates a new admin controller.
func NewAdminController(services *services.Services, store *database.Store) *AdminController {
	return &AdminController{services: services, store: store}
}

// Refresh handles POST /refresh/{group}: the operator-invoked refresh for
// manual table groups, bypassing the timers.
func (c *AdminController) Refresh(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	if err := c.services.Refresh.TriggerNow(r.Context(), group); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"group": group, "result": "refreshed"})
}

// Status handles GET /status: every table's snapshot version and age.
func (c *AdminController) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.store.Status())
}
