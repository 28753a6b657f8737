package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blogem/attest-desk/models"
)

// TableUpdate is one logical table's worth of freshly loaded rows.
type TableUpdate struct {
	Def  models.TableDef
	Rows []models.Row
}

// Publication is one atomic refresh-cycle unit. Tables that must stay
// consistent with each other (the attestation feed and its scrubbed
// projection) are published together under one cycle identifier and
// become visible in a single swap.
type Publication struct {
	Cycle  string
	Tables []TableUpdate
}

// TableStatus reports one logical table's current snapshot version for
// staleness monitoring.
type TableStatus struct {
	Table       string        `json:"table"`
	Cycle       string        `json:"cycle"`
	PublishedAt time.Time     `json:"published_at"`
	Age         time.Duration `json:"age"`
}

// ErrNoSnapshot is returned by Current before a table's first successful
// refresh.
type ErrNoSnapshot struct {
	Table string
}

func (e *ErrNoSnapshot) Error() string {
	return fmt.Sprintf("no snapshot published yet for %s", e.Table)
}

// version is one immutable materialization of a logical table. Readers
// hold refcounted handles to it; a superseded version's physical table is
// dropped once the last handle is released.
type version struct {
	logical     string
	physical    string
	columns     []string
	cycle       string
	publishedAt time.Time
	refs        int
	superseded  bool
}

// Store holds one current, fully committed snapshot per logical table.
// Publish is the sole mutation and the sole synchronization point; readers
// never observe a half-written table and a handle taken before a publish
// keeps serving its version until released.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock clockwork.Clock

	mu      sync.Mutex
	current map[string]*version
	seq     int64
}

// NewStore creates a snapshot store on top of an opened database.
func NewStore(db *sql.DB, log *slog.Logger, clock clockwork.Clock) *Store {
	return &Store{
		db:      db,
		log:     log,
		clock:   clock,
		current: make(map[string]*version),
	}
}

// DB exposes the underlying connection for reads through a handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Current returns the latest fully committed snapshot of a logical table.
// Non-blocking: concurrent publishes do not delay readers beyond the
// registry swap itself. The returned handle must be closed.
func (s *Store) Current(table string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.current[table]
	if !ok {
		return nil, &ErrNoSnapshot{Table: table}
	}
	v.refs++
	return &Handle{store: s, v: v}, nil
}

// Publish atomically replaces the current version of every table in the
// publication. The new physical tables are created and filled inside one
// transaction; only after commit does the registry pointer swap, so a
// failure at any point leaves the last good versions serving.
func (s *Store) Publish(ctx context.Context, pub Publication) error {
	if len(pub.Tables) == 0 {
		return fmt.Errorf("publication has no tables")
	}
	if pub.Cycle == "" {
		pub.Cycle = s.clock.Now().UTC().Format("20060102T150405.000")
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	staged := make([]*version, 0, len(pub.Tables))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}

	for _, upd := range pub.Tables {
		physical := fmt.Sprintf("%s_v%d", upd.Def.Name, seq)
		columns := tableColumns(upd)

		if err := createAndFill(ctx, tx, physical, columns, upd.Rows); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to materialize %s: %w", upd.Def.Name, err)
		}

		staged = append(staged, &version{
			logical:     upd.Def.Name,
			physical:    physical,
			columns:     columns,
			cycle:       pub.Cycle,
			publishedAt: s.clock.Now(),
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}

	// The swap itself. Everything in the publication becomes visible at
	// once; superseded versions are dropped when their last reader lets go.
	var obsolete []string
	s.mu.Lock()
	for _, v := range staged {
		if old, ok := s.current[v.logical]; ok {
			old.superseded = true
			if old.refs == 0 {
				obsolete = append(obsolete, old.physical)
			}
		}
		s.current[v.logical] = v
	}
	s.mu.Unlock()

	for _, v := range staged {
		s.log.Info("snapshot published",
			"table", v.logical, "physical", v.physical, "cycle", pub.Cycle)
	}
	s.drop(obsolete)
	return nil
}

// Staleness reports the age of a table's current snapshot.
func (s *Store) Staleness(table string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.current[table]
	if !ok {
		return 0, &ErrNoSnapshot{Table: table}
	}
	return s.clock.Since(v.publishedAt), nil
}

// Status reports every published table's version and age.
func (s *Store) Status() []TableStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]TableStatus, 0, len(s.current))
	for _, v := range s.current {
		statuses = append(statuses, TableStatus{
			Table:       v.logical,
			Cycle:       v.cycle,
			PublishedAt: v.publishedAt,
			Age:         s.clock.Since(v.publishedAt),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Table < statuses[j].Table })
	return statuses
}

// release is called by Handle.Close.
func (s *Store) release(v *version) {
	var obsolete []string
	s.mu.Lock()
	v.refs--
	if v.superseded && v.refs == 0 {
		obsolete = append(obsolete, v.physical)
	}
	s.mu.Unlock()
	s.drop(obsolete)
}

func (s *Store) drop(physicals []string) {
	for _, name := range physicals {
		if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(name))); err != nil {
			s.log.Warn("failed to drop superseded snapshot table", "table", name, "error", err)
		}
	}
}

// tableColumns determines the stored column set: the required columns
// first, then any extra columns found in the data (the attestation feed's
// opaque descriptive columns), sorted for a stable layout.
func tableColumns(upd TableUpdate) []string {
	seen := make(map[string]bool, len(upd.Def.RequiredColumns))
	columns := make([]string, 0, len(upd.Def.RequiredColumns))
	for _, c := range upd.Def.RequiredColumns {
		seen[c] = true
		columns = append(columns, c)
	}

	var extras []string
	for _, row := range upd.Rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				extras = append(extras, c)
			}
		}
	}
	sort.Strings(extras)
	return append(columns, extras...)
}

func createAndFill(ctx context.Context, tx *sql.Tx, physical string, columns []string, rows []models.Row) error {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}

	// Version counters restart at zero each process, so a file-backed
	// database may still hold this physical name from a previous run.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(physical))); err != nil {
		return fmt.Errorf("drop leftover table: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(physical), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(physical), strings.Join(quoted, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return nil
}

// quoteIdent quotes an identifier for SQLite. Identifiers come from the
// table catalog and loader-validated column names, but quoting keeps odd
// source column names (spaces, keywords) working.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
