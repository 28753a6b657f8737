package models

import "fmt"

// ValidationError reports malformed or incomplete source data detected at
// refresh time. The refresh tick is skipped and the prior snapshot stays
// live; the error is logged for operator attention and never reaches
// request handling.
type ValidationError struct {
	Table  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("source validation failed for %s: %s", e.Table, e.Reason)
}

// UnknownIdentityError reports an employee_id with no directory match.
// Personal scope collapses to the empty set; the request still completes
// with zero rows and an unknown_identity status.
type UnknownIdentityError struct {
	EmployeeID string
}

func (e *UnknownIdentityError) Error() string {
	return fmt.Sprintf("employee %s not found in directory", e.EmployeeID)
}

// InsufficientHistoryError reports a month-over-month comparison missing
// its baseline month. Distinct from "no new lines": the comparison could
// not be computed at all.
type InsufficientHistoryError struct {
	Month string
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("no records available for baseline month %s", e.Month)
}

// UnsafeQueryError reports a drafted query that failed validation. The
// request is rejected before anything executes.
type UnsafeQueryError struct {
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("unsafe query rejected: %s", e.Reason)
}

// ExecutionError reports a validated query that still failed against the
// actual schema. The diagnostic is surfaced as a rejection, never as data.
type ExecutionError struct {
	Diagnostic string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Diagnostic)
}

// RoutingError reports a status value with no workflow definition. The
// affected rows are excluded from queue results rather than guessed at.
type RoutingError struct {
	Status string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("status %q has no workflow definition", e.Status)
}
