package loaders

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/blogem/attest-desk/models"
)

// CSVLoader loads one logical table from a CSV extract. The first record
// is the header; every value is stored as text and interpreted lazily by
// the engine's typed accessors.
type CSVLoader struct {
	Def  models.TableDef
	Path string
}

// NewCSVLoader creates a loader for one table's CSV extract.
func NewCSVLoader(def models.TableDef, path string) *CSVLoader {
	return &CSVLoader{Def: def, Path: path}
}

// Load reads and parses the extract. A short read, ragged record, or
// missing file is an error; the scheduler keeps the previous snapshot.
func (l *CSVLoader) Load(ctx context.Context) (TableData, error) {
	if err := ctx.Err(); err != nil {
		return TableData{}, err
	}

	f, err := os.Open(l.Path)
	if err != nil {
		return TableData{}, fmt.Errorf("failed to open %s extract: %w", l.Def.Name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return TableData{}, fmt.Errorf("failed to parse %s extract: %w", l.Def.Name, err)
	}
	if len(records) == 0 {
		return TableData{}, fmt.Errorf("%s extract is empty (no header)", l.Def.Name)
	}

	header := records[0]
	rows := make([]models.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(models.Row, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return TableData{Def: l.Def, Rows: rows}, nil
}

// StaticLoader serves a fixed row set. Used for reference tables whose
// content ships with the deployment and for tests.
type StaticLoader struct {
	Def  models.TableDef
	Rows []models.Row
}

// NewStaticLoader creates a loader over fixed rows.
func NewStaticLoader(def models.TableDef, rows []models.Row) *StaticLoader {
	return &StaticLoader{Def: def, Rows: rows}
}

// Load returns the fixed rows.
func (l *StaticLoader) Load(ctx context.Context) (TableData, error) {
	if err := ctx.Err(); err != nil {
		return TableData{}, err
	}
	rows := make([]models.Row, len(l.Rows))
	copy(rows, l.Rows)
	return TableData{Def: l.Def, Rows: rows}, nil
}
