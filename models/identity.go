package models

import "strings"

// Identity represents one resolved directory entry. It is looked up fresh
// per request from the current directory snapshot and never persisted
// across requests.
type Identity struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// FullName returns the display name used for scope matching,
// e.g. "Jane Doe".
func (i Identity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
}

// NormalizedName returns the lowercased, trimmed full name. Scope
// predicates compare names case-insensitively, so both sides normalize
// the same way.
func (i Identity) NormalizedName() string {
	return strings.ToLower(i.FullName())
}
