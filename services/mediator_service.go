package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/llm"
	"github.com/blogem/attest-desk/models"
)

// requestState is one step of the mediation state machine. REJECTED is
// terminal and reachable from any state before EXECUTED; once a query has
// executed, the rows survive even if summarization fails or the caller
// goes away.
type requestState string

const (
	stateReceived      requestState = "RECEIVED"
	stateTableSelected requestState = "TABLE_SELECTED"
	stateQueryDrafted  requestState = "QUERY_DRAFTED"
	stateValidated     requestState = "VALIDATED"
	stateExecuted      requestState = "EXECUTED"
	stateSummarized    requestState = "SUMMARIZED"
	stateRejected      requestState = "REJECTED"
)

// categoryTables is the engine's own allow-list: which logical tables each
// classification category may select. The classification itself comes
// from the collaborator, but an unrecognized category or a table outside
// its category is rejected here, never defaulted to a broader table.
var categoryTables = map[llm.Category][]string{
	llm.CategoryPersonal:  {models.TableAttestationData},
	llm.CategoryPublic:    {models.TableAttestationScrubbed},
	llm.CategoryReference: {models.TableDataAdminMapping, models.TableDeadlines},
	llm.CategoryStatic:    {},
}

// tableDescriptions feed the classifier's catalog.
var tableDescriptions = map[string]string{
	models.TableAttestationData:     "the caller's own attestation records, one row per transit/line per month (personal)",
	models.TableAttestationScrubbed: "public projection of attestation data: line, month, division, status, preparer, approver (public)",
	models.TableDataAdminMapping:    "data administrator contact per division (reference)",
	models.TableDeadlines:           "attestation deadline rules per role (reference)",
}

// MediatorService turns a free-form question into a bounded, validated,
// scope-injected read against one snapshot table.
type MediatorService interface {
	Ask(ctx context.Context, req *models.AskRequest) *models.AskResponse
}

// mediatorService implements MediatorService.
type mediatorService struct {
	store      *database.Store
	scope      ScopeService
	classifier llm.Classifier
	drafter    llm.Drafter
	summarizer llm.Summarizer
	log        *slog.Logger
	rowCap     int
}

// NewMediatorService creates a new query mediator.
func NewMediatorService(
	store *database.Store,
	scope ScopeService,
	classifier llm.Classifier,
	drafter llm.Drafter,
	summarizer llm.Summarizer,
	log *slog.Logger,
	rowCap int,
) MediatorService {
	if rowCap <= 0 {
		rowCap = 200
	}
	return &mediatorService{
		store:      store,
		scope:      scope,
		classifier: classifier,
		drafter:    drafter,
		summarizer: summarizer,
		log:        log,
		rowCap:     rowCap,
	}
}

// flow tracks one request through the state machine.
type flow struct {
	log   *slog.Logger
	state requestState
}

func (f *flow) advance(to requestState) {
	f.log.Debug("mediation state", "from", f.state, "to", to)
	f.state = to
}

func (f *flow) reject(err error, status models.RequestStatus) *models.AskResponse {
	f.advance(stateRejected)
	f.log.Info("request rejected", "state", f.state, "error", err)
	return &models.AskResponse{
		Records: []models.Row{},
		Status:  status,
		Error:   err.Error(),
	}
}

// Ask mediates one question end to end.
func (m *mediatorService) Ask(ctx context.Context, req *models.AskRequest) *models.AskResponse {
	f := &flow{log: m.log.With("employee_id", req.EmployeeID), state: stateReceived}

	if errs := req.Validate(); len(errs) > 0 {
		return f.reject(fmt.Errorf("invalid request: %s", strings.Join(errs, "; ")), models.StatusRejected)
	}

	// Identity resolution fails closed: an unknown employee_id keeps the
	// request alive with an empty personal scope, reported as
	// unknown_identity rather than an error.
	finalStatus := models.StatusOK
	identity, err := m.scope.Resolve(ctx, req.EmployeeID)
	if err != nil {
		var unknown *models.UnknownIdentityError
		if !errors.As(err, &unknown) {
			return f.reject(err, models.StatusRejected)
		}
		identity = nil
		finalStatus = models.StatusUnknownIdentity
	}

	// TABLE_SELECTED: the collaborator proposes, the engine disposes.
	classification, err := m.classifier.Classify(ctx, req.Query, CatalogText())
	if err != nil {
		return f.reject(fmt.Errorf("classification unavailable: %w", err), models.StatusRejected)
	}
	table, err := validateClassification(classification)
	if err != nil {
		return f.reject(err, models.StatusRejected)
	}
	f.advance(stateTableSelected)

	if classification.Category == llm.CategoryStatic {
		// No table, no rows; the direct response is the whole answer.
		f.advance(stateSummarized)
		return &models.AskResponse{
			Records: []models.Row{},
			Summary: classification.DirectResponse,
			Status:  finalStatus,
		}
	}

	h, err := m.store.Current(table)
	if err != nil {
		return f.reject(fmt.Errorf("table %s unavailable: %w", table, err), models.StatusRejected)
	}
	defer h.Close()

	// QUERY_DRAFTED: the drafter sees the question and the schema, never
	// the data and never the scope predicate.
	draft, err := m.drafter.DraftQuery(ctx, req.Query, schemaText(table, h))
	if err != nil {
		return f.reject(fmt.Errorf("drafting unavailable: %w", err), models.StatusRejected)
	}
	f.advance(stateQueryDrafted)

	// VALIDATED: untrusted text becomes a constrained statement or dies.
	validated, err := ValidateDraft(draft, table)
	if err != nil {
		return f.reject(err, models.StatusRejected)
	}
	pred := m.scope.ScopeFor(identity, table)
	scoped, args, err := InjectScope(validated, table, h.Table(), pred)
	if err != nil {
		return f.reject(err, models.StatusRejected)
	}
	f.advance(stateValidated)

	// EXECUTED: bounded read against the request's snapshot version.
	rows, err := h.Query(ctx, WrapWithCap(scoped, m.rowCap), args...)
	if err != nil {
		if ctx.Err() != nil {
			return f.reject(ctx.Err(), models.StatusRejected)
		}
		execErr := &models.ExecutionError{Diagnostic: err.Error()}
		return f.reject(execErr, models.StatusRejected)
	}
	truncated := false
	if len(rows) > m.rowCap {
		rows = rows[:m.rowCap]
		truncated = true
	}
	if rows == nil {
		rows = []models.Row{}
	}
	f.advance(stateExecuted)

	resp := &models.AskResponse{
		Records:   rows,
		Status:    finalStatus,
		Truncated: truncated,
	}

	// SUMMARIZED: best-effort. Rows are already in hand; a cancelled
	// caller or a failed summarizer costs only the prose.
	if ctx.Err() == nil {
		summary, err := m.summarizer.Summarize(ctx, req.Query, formatRows(h.Columns(), rows, truncated))
		if err != nil {
			m.log.Warn("summarization failed, returning rows without summary", "error", err)
		} else {
			resp.Summary = summary
		}
	}
	f.advance(stateSummarized)
	return resp
}

// validateClassification enforces the engine-side policy check on the
// collaborator's routing decision.
func validateClassification(c *llm.Classification) (string, error) {
	allowed, ok := categoryTables[c.Category]
	if !ok {
		return "", &models.UnsafeQueryError{Reason: fmt.Sprintf("unrecognized category %q", c.Category)}
	}
	if c.Category == llm.CategoryStatic {
		return "", nil
	}
	for _, t := range allowed {
		if c.Table == t {
			return t, nil
		}
	}
	return "", &models.UnsafeQueryError{
		Reason: fmt.Sprintf("table %q is not permitted for category %q", c.Table, c.Category),
	}
}

// CatalogText renders the table catalog for the classifier.
func CatalogText() string {
	var sb strings.Builder
	for _, name := range []string{
		models.TableAttestationData,
		models.TableAttestationScrubbed,
		models.TableDataAdminMapping,
		models.TableDeadlines,
	} {
		fmt.Fprintf(&sb, "- %s: %s\n", name, tableDescriptions[name])
	}
	return sb.String()
}

// schemaText renders one table's schema for the drafter, using the
// logical name: physical snapshot names are the engine's business.
func schemaText(logical string, h *database.Handle) string {
	return fmt.Sprintf("%s(%s)", logical, strings.Join(h.Columns(), ", "))
}

// formatRows renders a bounded result for the summarizer.
func formatRows(columns []string, rows []models.Row, truncated bool) string {
	if len(rows) == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(columns, " | "))
	fmt.Fprintf(&sb, "Rows (%d):\n", len(rows))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = row.Get(col)
		}
		sb.WriteString(strings.Join(values, " | ") + "\n")
	}
	if truncated {
		sb.WriteString("(result truncated at the row cap)\n")
	}
	return sb.String()
}
