package repositories

import (
	"context"
	"fmt"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
)

// AttestationRepository interface defines reads over one attestation
// snapshot. The scope predicate is applied inside the query, so no row
// outside the caller's visibility ever leaves the database.
type AttestationRepository interface {
	Months(ctx context.Context, h *database.Handle) ([]string, error)
	ByMonth(ctx context.Context, h *database.Handle, month string, scope models.RowPredicate) ([]models.Row, error)
}

// attestationRepository implements AttestationRepository.
type attestationRepository struct{}

// NewAttestationRepository creates a new attestation repository.
func NewAttestationRepository() AttestationRepository {
	return &attestationRepository{}
}

// Months returns the distinct period keys present in the snapshot, newest
// first.
func (r *attestationRepository) Months(ctx context.Context, h *database.Handle) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %q AS %q FROM %q ORDER BY %q DESC`,
		models.ColMonth, models.ColMonth, h.Table(), models.ColMonth)

	rows, err := h.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query months: %w", err)
	}

	months := make([]string, 0, len(rows))
	for _, row := range rows {
		months = append(months, row.Month())
	}
	return months, nil
}

// ByMonth returns the caller-visible rows for one period key.
func (r *attestationRepository) ByMonth(ctx context.Context, h *database.Handle, month string, scope models.RowPredicate) ([]models.Row, error) {
	query := fmt.Sprintf(
		`SELECT * FROM %q WHERE (%s) AND %q = ?`,
		h.Table(), scope.SQL, models.ColMonth)

	args := append(append([]any{}, scope.Args...), month)
	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query month %s: %w", month, err)
	}
	return rows, nil
}
