package repositories

import (
	"context"
	"fmt"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
)

// ReferenceRepository interface defines lookups over the reference table
// snapshots (data admin mapping and deadlines).
type ReferenceRepository interface {
	Admins(ctx context.Context, h *database.Handle) ([]models.DataAdminMapping, error)
	AdminForDivision(ctx context.Context, h *database.Handle, division string) (*models.DataAdminMapping, error)
	Deadlines(ctx context.Context, h *database.Handle) ([]models.DeadlineEntry, error)
}

// referenceRepository implements ReferenceRepository.
type referenceRepository struct{}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository() ReferenceRepository {
	return &referenceRepository{}
}

// Admins returns every division's data administrator.
func (r *referenceRepository) Admins(ctx context.Context, h *database.Handle) ([]models.DataAdminMapping, error) {
	query := fmt.Sprintf(`SELECT * FROM %q ORDER BY "division"`, h.Table())
	rows, err := h.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data admin mapping: %w", err)
	}

	admins := make([]models.DataAdminMapping, 0, len(rows))
	for _, row := range rows {
		admins = append(admins, models.DataAdminMapping{
			Division:     row.Get("division"),
			AdminName:    row.Get("admin_name"),
			AdminContact: row.Get("admin_contact"),
		})
	}
	return admins, nil
}

// AdminForDivision returns one division's data administrator, or nil when
// the division is unmapped.
func (r *referenceRepository) AdminForDivision(ctx context.Context, h *database.Handle, division string) (*models.DataAdminMapping, error) {
	query := fmt.Sprintf(`SELECT * FROM %q WHERE "division" = ?`, h.Table())
	rows, err := h.Query(ctx, query, division)
	if err != nil {
		return nil, fmt.Errorf("failed to query data admin mapping: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &models.DataAdminMapping{
		Division:     row.Get("division"),
		AdminName:    row.Get("admin_name"),
		AdminContact: row.Get("admin_contact"),
	}, nil
}

// Deadlines returns every role's attestation deadline rule.
func (r *referenceRepository) Deadlines(ctx context.Context, h *database.Handle) ([]models.DeadlineEntry, error) {
	query := fmt.Sprintf(`SELECT * FROM %q ORDER BY "role"`, h.Table())
	rows, err := h.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines: %w", err)
	}

	deadlines := make([]models.DeadlineEntry, 0, len(rows))
	for _, row := range rows {
		deadlines = append(deadlines, models.DeadlineEntry{
			Role:          models.Role(row.Get("role")),
			Deadline:      row.Get("deadline"),
			ReferenceLink: row.Get("reference_link"),
		})
	}
	return deadlines, nil
}
