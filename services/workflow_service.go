package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/repositories"
)

// WorkflowService encodes the status-to-role model: which role's
// workbasket owns each status, how roles order in the review hierarchy,
// and how queue membership and month-over-month deltas derive from that.
// A status with no definition is unroutable and always fails closed: the
// row is excluded from queue results rather than guessed at.
type WorkflowService interface {
	// IsInOwnWorkbasket reports whether a status sits in the given role's
	// own queue. Unknown statuses return a RoutingError.
	IsInOwnWorkbasket(status string, role models.Role) (bool, error)

	// IsInExtendedQueue reports whether a status's owning role is at or
	// upstream of the caller's highest role in the hierarchy.
	IsInExtendedQueue(status string, highest models.Role) (bool, error)

	// LinesNewThisMonth returns the line_ids present in current but absent
	// from previous, matched on line_id alone.
	LinesNewThisMonth(current, previous []models.Row) []string

	// RolesOn resolves the caller's roles on one record. A user may be
	// preparer on one line and approver on another; roles are per record,
	// never global.
	RolesOn(identity *models.Identity, row models.Row) []models.Role

	// Workbasket returns the caller's own pending rows for the current
	// month.
	Workbasket(ctx context.Context, identity *models.Identity) ([]models.Row, error)

	// ExtendedQueue returns the caller-visible rows owned at or upstream
	// of the caller's highest role.
	ExtendedQueue(ctx context.Context, identity *models.Identity) ([]models.Row, error)

	// NewLines returns the caller's line_ids new this month versus last.
	// Without a baseline month it returns InsufficientHistoryError,
	// distinct from "no new lines".
	NewLines(ctx context.Context, identity *models.Identity) ([]string, error)
}

// workflowService implements WorkflowService.
type workflowService struct {
	defs     map[string]models.WorkflowStatusDef
	roleRank map[models.Role]int
	store    *database.Store
	attRepo  repositories.AttestationRepository
	scope    ScopeService
	log      *slog.Logger
}

// NewWorkflowService creates a workflow service over the given status
// definitions.
func NewWorkflowService(
	statusDefs []models.WorkflowStatusDef,
	store *database.Store,
	attRepo repositories.AttestationRepository,
	scope ScopeService,
	log *slog.Logger,
) WorkflowService {
	defs := make(map[string]models.WorkflowStatusDef, len(statusDefs))
	roleRank := make(map[models.Role]int)
	for _, def := range statusDefs {
		defs[normalizeStatus(def.StatusValue)] = def
		if def.OwningRole == models.RoleNone {
			continue
		}
		if rank, ok := roleRank[def.OwningRole]; !ok || def.OrderRank < rank {
			roleRank[def.OwningRole] = def.OrderRank
		}
	}

	return &workflowService{
		defs:     defs,
		roleRank: roleRank,
		store:    store,
		attRepo:  attRepo,
		scope:    scope,
		log:      log,
	}
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// IsInOwnWorkbasket reports whether the status's owning role is the given
// role.
func (s *workflowService) IsInOwnWorkbasket(status string, role models.Role) (bool, error) {
	def, ok := s.defs[normalizeStatus(status)]
	if !ok {
		return false, &models.RoutingError{Status: status}
	}
	return def.OwningRole != models.RoleNone && def.OwningRole == role, nil
}

// IsInExtendedQueue reports whether the status's owning role ranks at or
// below the caller's highest role. Terminal statuses belong to nobody's
// queue.
func (s *workflowService) IsInExtendedQueue(status string, highest models.Role) (bool, error) {
	def, ok := s.defs[normalizeStatus(status)]
	if !ok {
		return false, &models.RoutingError{Status: status}
	}
	if def.OwningRole == models.RoleNone {
		return false, nil
	}

	ownRank, ok := s.roleRank[def.OwningRole]
	if !ok {
		return false, &models.RoutingError{Status: status}
	}
	callerRank, ok := s.roleRank[highest]
	if !ok {
		return false, nil
	}
	return ownRank <= callerRank, nil
}

// LinesNewThisMonth returns the set difference of line_ids, current minus
// previous. A line present in both months is excluded regardless of any
// other column changes.
func (s *workflowService) LinesNewThisMonth(current, previous []models.Row) []string {
	prior := make(map[string]bool, len(previous))
	for _, row := range previous {
		prior[row.LineID()] = true
	}

	seen := make(map[string]bool, len(current))
	var fresh []string
	for _, row := range current {
		id := row.LineID()
		if id == "" || prior[id] || seen[id] {
			continue
		}
		seen[id] = true
		fresh = append(fresh, id)
	}
	sort.Strings(fresh)
	return fresh
}

// RolesOn resolves the caller's per-record roles by name match against the
// record's assignment columns.
func (s *workflowService) RolesOn(identity *models.Identity, row models.Row) []models.Role {
	if identity == nil {
		return nil
	}
	name := identity.NormalizedName()

	var roles []models.Role
	if strings.ToLower(strings.TrimSpace(row.PreparerName())) == name {
		roles = append(roles, models.RolePreparer)
	}
	if strings.ToLower(strings.TrimSpace(row.ApproverName())) == name {
		roles = append(roles, models.RoleApprover)
	}
	return roles
}

// Workbasket returns the caller's own-queue rows for the current month.
func (s *workflowService) Workbasket(ctx context.Context, identity *models.Identity) ([]models.Row, error) {
	rows, _, err := s.scopedCurrentMonth(ctx, identity)
	if err != nil {
		return nil, err
	}

	var queue []models.Row
	for _, row := range rows {
		for _, role := range s.RolesOn(identity, row) {
			in, err := s.IsInOwnWorkbasket(row.Status(), role)
			if err != nil {
				s.log.Warn("unroutable status excluded from workbasket",
					"status", row.Status(), "line_id", row.LineID(), "error", err)
				break
			}
			if in {
				queue = append(queue, row)
				break
			}
		}
	}
	return queue, nil
}

// ExtendedQueue returns everything pending at or upstream of the caller's
// position: their own queue plus work still sitting with earlier roles.
func (s *workflowService) ExtendedQueue(ctx context.Context, identity *models.Identity) ([]models.Row, error) {
	rows, _, err := s.scopedCurrentMonth(ctx, identity)
	if err != nil {
		return nil, err
	}

	highest, ok := s.highestRole(identity, rows)
	if !ok {
		return nil, nil
	}

	var queue []models.Row
	for _, row := range rows {
		in, err := s.IsInExtendedQueue(row.Status(), highest)
		if err != nil {
			s.log.Warn("unroutable status excluded from extended queue",
				"status", row.Status(), "line_id", row.LineID(), "error", err)
			continue
		}
		if in {
			queue = append(queue, row)
		}
	}
	return queue, nil
}

// NewLines returns the caller's month-over-month new line_ids.
func (s *workflowService) NewLines(ctx context.Context, identity *models.Identity) ([]string, error) {
	h, err := s.store.Current(models.TableAttestationData)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	months, err := s.attRepo.Months(ctx, h)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 {
		return nil, &models.InsufficientHistoryError{Month: "none"}
	}

	current := months[0]
	previous, err := models.PreviousMonth(current)
	if err != nil {
		return nil, fmt.Errorf("cannot derive baseline month: %w", err)
	}
	if !containsMonth(months, previous) {
		return nil, &models.InsufficientHistoryError{Month: previous}
	}

	pred := s.scope.ScopeFor(identity, models.TableAttestationData)
	currentRows, err := s.attRepo.ByMonth(ctx, h, current, pred)
	if err != nil {
		return nil, err
	}
	previousRows, err := s.attRepo.ByMonth(ctx, h, previous, pred)
	if err != nil {
		return nil, err
	}

	return s.LinesNewThisMonth(currentRows, previousRows), nil
}

// scopedCurrentMonth loads the caller-visible rows for the snapshot's
// newest month. One handle serves all reads, so the month selection and
// the rows come from the same version.
func (s *workflowService) scopedCurrentMonth(ctx context.Context, identity *models.Identity) ([]models.Row, string, error) {
	h, err := s.store.Current(models.TableAttestationData)
	if err != nil {
		return nil, "", err
	}
	defer h.Close()

	months, err := s.attRepo.Months(ctx, h)
	if err != nil {
		return nil, "", err
	}
	if len(months) == 0 {
		return nil, "", nil
	}

	current := months[0]
	pred := s.scope.ScopeFor(identity, models.TableAttestationData)
	rows, err := s.attRepo.ByMonth(ctx, h, current, pred)
	if err != nil {
		return nil, "", err
	}
	return rows, current, nil
}

func (s *workflowService) highestRole(identity *models.Identity, rows []models.Row) (models.Role, bool) {
	var highest models.Role
	found := false
	for _, row := range rows {
		for _, role := range s.RolesOn(identity, row) {
			if !found || s.roleRank[role] > s.roleRank[highest] {
				highest = role
				found = true
			}
		}
	}
	return highest, found
}

func containsMonth(months []string, month string) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
