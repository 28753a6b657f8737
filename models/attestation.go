package models

import (
	"fmt"
	"time"
)

// Column names for the attestation feed. The feed carries ~50 columns; the
// engine only interprets these six and treats the rest as opaque
// descriptive data.
const (
	ColLineID       = "line_id"
	ColMonth        = "month"
	ColPreparerName = "preparer_name"
	ColApproverName = "approver_name"
	ColDivision     = "division"
	ColStatus       = "status"
)

// Row is one record from a snapshot table. Attestation rows carry many
// descriptive columns the engine does not interpret, so rows are kept as
// column-name keyed maps with typed accessors for the columns the engine
// does understand.
type Row map[string]any

// Get returns the named column as a string, or "" when absent or nil.
func (r Row) Get(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (r Row) LineID() string       { return r.Get(ColLineID) }
func (r Row) Month() string        { return r.Get(ColMonth) }
func (r Row) PreparerName() string { return r.Get(ColPreparerName) }
func (r Row) ApproverName() string { return r.Get(ColApproverName) }
func (r Row) Division() string     { return r.Get(ColDivision) }
func (r Row) Status() string       { return r.Get(ColStatus) }

// Month is a period key in YYYY-MM form.
const monthLayout = "2006-01"

// ParseMonth validates a YYYY-MM period key.
func ParseMonth(s string) (time.Time, error) {
	return time.Parse(monthLayout, s)
}

// FormatMonth formats a time as a YYYY-MM period key.
func FormatMonth(t time.Time) string {
	return t.Format(monthLayout)
}

// PreviousMonth returns the period key immediately before the given one.
func PreviousMonth(month string) (string, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return "", fmt.Errorf("invalid month %q: %w", month, err)
	}
	return FormatMonth(t.AddDate(0, -1, 0)), nil
}
