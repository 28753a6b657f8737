package models

import "strings"

// RequestStatus is the overall outcome reported to the caller.
type RequestStatus string

const (
	StatusOK              RequestStatus = "ok"
	StatusRejected        RequestStatus = "rejected"
	StatusUnknownIdentity RequestStatus = "unknown_identity"
)

// AskRequest is the inbound question. The employee_id arrives pre-verified
// by the caller; the engine resolves it against the directory but performs
// no authentication.
type AskRequest struct {
	Query      string `json:"query"`
	EmployeeID string `json:"employee_id"`
}

// Validate checks the request is well-formed.
func (r *AskRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(r.Query) == "" {
		errs = append(errs, "query is required")
	}
	if strings.TrimSpace(r.EmployeeID) == "" {
		errs = append(errs, "employee_id is required")
	}
	return errs
}

// AskResponse is the terminal response for one question. Records are
// always populated when execution succeeded, with or without a summary:
// summarization is best-effort and its failure never discards rows.
type AskResponse struct {
	Records   []Row         `json:"records"`
	Summary   string        `json:"summary,omitempty"`
	Status    RequestStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

// QueueResponse is the response for the workbasket and month-over-month
// endpoints.
type QueueResponse struct {
	Records []Row         `json:"records,omitempty"`
	LineIDs []string      `json:"line_ids,omitempty"`
	Status  RequestStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}
