package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/services"
	"github.com/blogem/attest-desk/userctx"
)

// AskController handles natural-language questions.
type AskController struct {
	services *services.Services
}

// NewAskController creates a new ask controller.
func NewAskController(services *services.Services) *AskController {
	return &AskController{services: services}
}

// Ask handles POST /ask. The employee_id may arrive in the body or, when
// absent, from the verified X-Employee-ID header.
func (c *AskController) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.EmployeeID == "" {
		req.EmployeeID = userctx.GetEmployeeID(r.Context())
	}

	resp := c.services.Mediator.Ask(r.Context(), &req)
	writeJSON(w, http.StatusOK, resp)
}
