package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
)

// DirectoryRepository interface defines directory snapshot lookups.
type DirectoryRepository interface {
	FindByEmployeeID(ctx context.Context, h *database.Handle, employeeID string) (*models.Identity, error)
}

// directoryRepository implements DirectoryRepository.
type directoryRepository struct{}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository() DirectoryRepository {
	return &directoryRepository{}
}

// FindByEmployeeID resolves an employee_id against the directory snapshot.
// A miss returns UnknownIdentityError: the caller fails closed to an empty
// personal scope rather than guessing.
func (r *directoryRepository) FindByEmployeeID(ctx context.Context, h *database.Handle, employeeID string) (*models.Identity, error) {
	query := fmt.Sprintf(
		`SELECT "employee_id", "first_name", "last_name" FROM %q WHERE TRIM("employee_id") = ?`,
		h.Table())

	rows, err := h.Query(ctx, query, strings.TrimSpace(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query directory: %w", err)
	}
	if len(rows) == 0 {
		return nil, &models.UnknownIdentityError{EmployeeID: employeeID}
	}

	row := rows[0]
	return &models.Identity{
		EmployeeID: row.Get("employee_id"),
		FirstName:  row.Get("first_name"),
		LastName:   row.Get("last_name"),
	}, nil
}
