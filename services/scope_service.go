package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/repositories"
)

// ScopeService resolves identities and computes row-level visibility.
// Both are computed fresh per request from the current directory snapshot,
// never cached past the directory's own refresh boundary: a name change
// becomes visible within one directory refresh cycle.
type ScopeService interface {
	// Resolve looks up an employee_id in the current directory snapshot.
	// A miss returns UnknownIdentityError.
	Resolve(ctx context.Context, employeeID string) (*models.Identity, error)

	// ScopeFor computes the predicate restricting a table to the rows the
	// identity may see. A nil identity on a scoped table yields the empty
	// set: unknown callers see zero personal rows, never more.
	ScopeFor(identity *models.Identity, table string) models.RowPredicate
}

// scopeService implements ScopeService.
type scopeService struct {
	store     *database.Store
	directory repositories.DirectoryRepository
}

// NewScopeService creates a new scope service.
func NewScopeService(store *database.Store, directory repositories.DirectoryRepository) ScopeService {
	return &scopeService{store: store, directory: directory}
}

// Resolve looks up the identity in the current directory snapshot.
func (s *scopeService) Resolve(ctx context.Context, employeeID string) (*models.Identity, error) {
	h, err := s.store.Current(models.TableUserDirectory)
	if err != nil {
		return nil, fmt.Errorf("directory unavailable: %w", err)
	}
	defer h.Close()

	return s.directory.FindByEmployeeID(ctx, h, employeeID)
}

// ScopeFor computes the row predicate for one identity and table.
func (s *scopeService) ScopeFor(identity *models.Identity, table string) models.RowPredicate {
	def, ok := models.TableFor(table)
	if !ok || len(def.ScopeColumns) == 0 {
		// Public and reference tables carry no row-level restriction.
		return models.PredicateAll()
	}

	if identity == nil {
		return models.PredicateNone()
	}

	name := identity.NormalizedName()
	clauses := make([]string, len(def.ScopeColumns))
	args := make([]any, len(def.ScopeColumns))
	for i, col := range def.ScopeColumns {
		clauses[i] = fmt.Sprintf(`LOWER(TRIM(%q)) = ?`, col)
		args[i] = name
	}

	return models.RowPredicate{
		SQL:  strings.Join(clauses, " OR "),
		Args: args,
	}
}
