// Package loaders provides the source-loader collaborators invoked by the
// refresh scheduler, plus the validation every load must pass before it
// can be published. Extraction formats beyond CSV (Excel, a future
// relational source) plug in behind the same Loader interface.
package loaders

import (
	"context"
	"fmt"
	"strings"

	"github.com/blogem/attest-desk/models"
)

// TableData is one logical table's worth of loaded rows, not yet
// validated.
type TableData struct {
	Def  models.TableDef
	Rows []models.Row
}

// Loader loads one logical table from its source. Implementations must
// return an error rather than partial or malformed data.
type Loader interface {
	Load(ctx context.Context) (TableData, error)
}

// Validate checks loaded data against the table definition: every
// required column present, no undeclared columns on exact tables, and the
// key columns unique across rows. A failed validation skips the refresh
// tick; the previous snapshot stays live.
func Validate(data TableData) error {
	def := data.Def

	declared := make(map[string]bool, len(def.RequiredColumns))
	for _, c := range def.RequiredColumns {
		declared[c] = true
	}

	seenKeys := make(map[string]int, len(data.Rows))
	for i, row := range data.Rows {
		for _, c := range def.RequiredColumns {
			if _, ok := row[c]; !ok {
				return &models.ValidationError{
					Table:  def.Name,
					Reason: fmt.Sprintf("row %d is missing required column %q", i, c),
				}
			}
		}

		if def.Exact {
			for c := range row {
				if !declared[c] {
					return &models.ValidationError{
						Table:  def.Name,
						Reason: fmt.Sprintf("row %d carries undeclared column %q", i, c),
					}
				}
			}
		}

		if len(def.KeyColumns) > 0 {
			key := rowKey(row, def.KeyColumns)
			if prev, dup := seenKeys[key]; dup {
				return &models.ValidationError{
					Table: def.Name,
					Reason: fmt.Sprintf("rows %d and %d share key (%s)=%s",
						prev, i, strings.Join(def.KeyColumns, ","), key),
				}
			}
			seenKeys[key] = i
		}
	}

	return nil
}

func rowKey(row models.Row, keyColumns []string) string {
	parts := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		parts[i] = row.Get(c)
	}
	return strings.Join(parts, "\x1f")
}
