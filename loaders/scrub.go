package loaders

import "github.com/blogem/attest-desk/models"

// DeriveScrubbed projects the full attestation feed onto the pre-declared
// public column subset. The derivation happens inside the same refresh
// cycle as the full load, so the scrubbed snapshot never mixes cycles with
// the data it was produced from.
func DeriveScrubbed(full TableData) TableData {
	def := models.Tables[models.TableAttestationScrubbed]

	rows := make([]models.Row, 0, len(full.Rows))
	for _, src := range full.Rows {
		row := make(models.Row, len(models.ScrubbedColumns))
		for _, col := range models.ScrubbedColumns {
			row[col] = src[col]
		}
		rows = append(rows, row)
	}

	return TableData{Def: def, Rows: rows}
}
