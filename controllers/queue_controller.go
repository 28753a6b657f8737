package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/services"
	"github.com/blogem/attest-desk/userctx"
)

// QueueController serves the workflow queue views: the caller's own
// workbasket, the extended queue, and the month-over-month delta.
type QueueController struct {
	services *services.Services
}

// NewQueueController creates a new queue controller.
func NewQueueController(services *services.Services) *QueueController {
	return &QueueController{services: services}
}

// Workbasket handles GET /queue.
func (c *QueueController) Workbasket(w http.ResponseWriter, r *http.Request) {
	c.respondRows(w, r, c.services.Workflow.Workbasket)
}

// Extended handles GET /queue/extended.
func (c *QueueController) Extended(w http.ResponseWriter, r *http.Request) {
	c.respondRows(w, r, c.services.Workflow.ExtendedQueue)
}

// NewLines handles GET /queue/new.
func (c *QueueController) NewLines(w http.ResponseWriter, r *http.Request) {
	identity, status, errMsg := c.resolve(r)
	if errMsg != "" {
		writeJSON(w, http.StatusOK, models.QueueResponse{Status: status, Error: errMsg})
		return
	}

	lineIDs, err := c.services.Workflow.NewLines(r.Context(), identity)
	if err != nil {
		var insufficient *models.InsufficientHistoryError
		if errors.As(err, &insufficient) {
			// Distinct from "no new lines": the baseline month is missing.
			writeJSON(w, http.StatusOK, models.QueueResponse{
				Status: models.StatusRejected,
				Error:  insufficient.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	if lineIDs == nil {
		lineIDs = []string{}
	}
	writeJSON(w, http.StatusOK, models.QueueResponse{LineIDs: lineIDs, Status: status})
}

func (c *QueueController) respondRows(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(context.Context, *models.Identity) ([]models.Row, error),
) {
	identity, status, errMsg := c.resolve(r)
	if errMsg != "" {
		writeJSON(w, http.StatusOK, models.QueueResponse{
			Records: []models.Row{},
			Status:  status,
			Error:   errMsg,
		})
		return
	}

	rows, err := fetch(r.Context(), identity)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if rows == nil {
		rows = []models.Row{}
	}
	writeJSON(w, http.StatusOK, models.QueueResponse{Records: rows, Status: status})
}

// resolve finds the caller's identity from the employee_id query param or
// the verified header. An unknown identity is not fatal: the queue views
// simply come back empty with status unknown_identity.
func (c *QueueController) resolve(r *http.Request) (*models.Identity, models.RequestStatus, string) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		employeeID = userctx.GetEmployeeID(r.Context())
	}
	if employeeID == "" {
		return nil, models.StatusRejected, "employee_id is required"
	}

	identity, err := c.services.Scope.Resolve(r.Context(), employeeID)
	if err != nil {
		var unknown *models.UnknownIdentityError
		if errors.As(err, &unknown) {
			return nil, models.StatusUnknownIdentity, unknown.Error()
		}
		return nil, models.StatusRejected, err.Error()
	}
	return identity, models.StatusOK, ""
}
