package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/blogem/attest-desk/models"
)

// Handle is a reference to one immutable snapshot version. A request holds
// its handles for the duration of the request: concurrent publishes swap
// the registry but never the tables a handle points at, so every read
// through one handle sees one consistent version.
type Handle struct {
	store *Store
	v     *version
	once  sync.Once
}

// Table returns the physical table name queries must run against.
func (h *Handle) Table() string {
	return h.v.physical
}

// Logical returns the logical table name this snapshot materializes.
func (h *Handle) Logical() string {
	return h.v.logical
}

// Columns returns the snapshot's stored column set.
func (h *Handle) Columns() []string {
	columns := make([]string, len(h.v.columns))
	copy(columns, h.v.columns)
	return columns
}

// Cycle returns the refresh-cycle identifier this version was published
// under.
func (h *Handle) Cycle() string {
	return h.v.cycle
}

// PublishedAt returns when this version was committed.
func (h *Handle) PublishedAt() time.Time {
	return h.v.publishedAt
}

// Close releases the handle. Once the last handle on a superseded version
// closes, its physical table is dropped. Safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.store.release(h.v)
	})
}

// Query runs a read-only statement against this snapshot and returns the
// rows as column-keyed maps.
func (h *Handle) Query(ctx context.Context, query string, args ...any) ([]models.Row, error) {
	rows, err := h.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows reads all result rows into column-keyed maps. []byte values are
// converted to strings: sqlite reports TEXT affinity columns as raw bytes.
func scanRows(rows *sql.Rows) ([]models.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var out []models.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return out, nil
}
