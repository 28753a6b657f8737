package userctx

import "context"

// Context key type
type contextKey string

const employeeIDKey contextKey = "employee_id"

// SetEmployeeID adds the pre-verified employee id to the request context.
func SetEmployeeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, employeeIDKey, id)
}

// GetEmployeeID retrieves the employee id from the request context.
func GetEmployeeID(ctx context.Context) string {
	if id, ok := ctx.Value(employeeIDKey).(string); ok {
		return id
	}
	return ""
}
