package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/loaders"
	"github.com/blogem/attest-desk/models"
)

// LoadFunc produces one refresh cycle's worth of data for a table group.
// Groups whose tables must stay consistent (the attestation feed and its
// scrubbed projection) return both from one call so they share a cycle.
type LoadFunc func(ctx context.Context) ([]loaders.TableData, error)

// TableGroup is one independently scheduled refresh unit.
type TableGroup struct {
	Name string

	// Interval between automatic refreshes. Zero means manual only: the
	// group never auto-fires and refreshes solely through TriggerNow.
	Interval time.Duration

	Load LoadFunc
}

// RefreshService drives per-group refresh cycles into the snapshot store.
type RefreshService interface {
	Register(group TableGroup) error
	Start(ctx context.Context)
	TriggerNow(ctx context.Context, name string) error
	Stop()
}

type groupState struct {
	TableGroup

	// gate serializes refreshes: at most one in flight per group. Timer
	// ticks that find the gate held are skipped; manual triggers wait.
	gate chan struct{}
}

// refreshService implements RefreshService.
type refreshService struct {
	store *database.Store
	clock clockwork.Clock
	log   *slog.Logger

	mu      sync.Mutex
	groups  map[string]*groupState
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRefreshService creates a new refresh service.
func NewRefreshService(store *database.Store, clock clockwork.Clock, log *slog.Logger) RefreshService {
	return &refreshService{
		store:  store,
		clock:  clock,
		log:    log,
		groups: make(map[string]*groupState),
	}
}

// Register adds a table group. All groups must be registered before Start.
func (s *refreshService) Register(group TableGroup) error {
	if group.Name == "" {
		return errors.New("table group needs a name")
	}
	if group.Load == nil {
		return fmt.Errorf("table group %s needs a load function", group.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot register %s after start", group.Name)
	}
	if _, dup := s.groups[group.Name]; dup {
		return fmt.Errorf("table group %s already registered", group.Name)
	}

	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	s.groups[group.Name] = &groupState{TableGroup: group, gate: gate}
	return nil
}

// Start begins one independent timer per automatic group. Each group also
// refreshes once immediately so the store serves data from the outset.
func (s *refreshService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	groups := make([]*groupState, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	s.mu.Unlock()

	for _, g := range groups {
		if g.Interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.run(ctx, g)
	}
}

func (s *refreshService) run(ctx context.Context, g *groupState) {
	defer s.wg.Done()

	if err := s.refresh(ctx, g, false); err != nil {
		s.log.Error("initial refresh failed", "group", g.Name, "error", err)
	}

	ticker := s.clock.NewTicker(g.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.refresh(ctx, g, false); err != nil {
				s.log.Error("refresh tick failed", "group", g.Name, "error", err)
			}
		}
	}
}

// TriggerNow refreshes a group outside its timer. This is the operator
// path for the manual-only reference groups; it waits for any in-flight
// refresh of the same group to finish first.
func (s *refreshService) TriggerNow(ctx context.Context, name string) error {
	s.mu.Lock()
	g, ok := s.groups[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown table group %s", name)
	}
	return s.refresh(ctx, g, true)
}

// refresh runs one load-validate-publish cycle. A validation failure skips
// the publish and leaves the previous snapshot live.
func (s *refreshService) refresh(ctx context.Context, g *groupState, wait bool) error {
	if wait {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		select {
		case <-g.gate:
		default:
			s.log.Info("refresh already in flight, skipping tick", "group", g.Name)
			return nil
		}
	}
	defer func() { g.gate <- struct{}{} }()

	started := s.clock.Now()

	var data []loaders.TableData
	load := func() error {
		var err error
		data, err = g.Load(ctx)
		if err != nil {
			// Validation failures are final for this tick; only transport
			// errors are worth retrying.
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(load, policy); err != nil {
		return fmt.Errorf("load failed for group %s: %w", g.Name, err)
	}

	updates := make([]database.TableUpdate, 0, len(data))
	for _, td := range data {
		if err := loaders.Validate(td); err != nil {
			return fmt.Errorf("refresh skipped: %w", err)
		}
		updates = append(updates, database.TableUpdate{Def: td.Def, Rows: td.Rows})
	}

	pub := database.Publication{
		Cycle:  s.clock.Now().UTC().Format("20060102T150405.000"),
		Tables: updates,
	}
	if err := s.store.Publish(ctx, pub); err != nil {
		return fmt.Errorf("publish failed for group %s: %w", g.Name, err)
	}

	s.log.Info("refresh completed",
		"group", g.Name, "cycle", pub.Cycle, "duration", s.clock.Since(started))
	return nil
}

// Stop halts all timers and waits for in-flight refreshes to drain.
func (s *refreshService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
