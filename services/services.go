package services

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/llm"
	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/repositories"
)

// Services holds all service instances.
type Services struct {
	Refresh  RefreshService
	Scope    ScopeService
	Workflow WorkflowService
	Mediator MediatorService
}

// Config carries the tunables services need beyond their collaborators.
type Config struct {
	// RowCap bounds the number of rows one mediated query may return.
	RowCap int
}

// NewServices creates and initializes all service instances.
func NewServices(
	store *database.Store,
	repos *repositories.Repositories,
	collab *llm.Collaborators,
	statusDefs []models.WorkflowStatusDef,
	clock clockwork.Clock,
	log *slog.Logger,
	cfg Config,
) *Services {
	scope := NewScopeService(store, repos.Directory)
	workflow := NewWorkflowService(statusDefs, store, repos.Attestation, scope, log)

	return &Services{
		Refresh:  NewRefreshService(store, clock, log),
		Scope:    scope,
		Workflow: workflow,
		Mediator: NewMediatorService(store, scope, collab, collab, collab, log, cfg.RowCap),
	}
}
