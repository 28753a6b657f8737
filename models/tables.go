package models

// Logical table names. Each logical table is materialized as a versioned
// physical snapshot table by the snapshot store.
const (
	TableUserDirectory       = "user_directory"
	TableAttestationData     = "attestation_data"
	TableAttestationScrubbed = "attestation_scrubbed"
	TableDataAdminMapping    = "data_admin_mapping"
	TableDeadlines           = "deadlines"
)

// TableDef describes one logical table: the columns the engine requires,
// the uniqueness key, and which columns scope predicates match names
// against. The exact source column names are configuration here rather
// than assumptions baked into the scoper or workflow code.
type TableDef struct {
	Name string

	// RequiredColumns must be present in every refresh. The attestation
	// feed carries additional descriptive columns beyond these; they are
	// stored and queryable but never interpreted.
	RequiredColumns []string

	// Exact, when true, rejects refreshes carrying columns outside
	// RequiredColumns. The scrubbed projection is exact; the full feed
	// is not.
	Exact bool

	// KeyColumns must be unique per row within one refresh.
	KeyColumns []string

	// ScopeColumns are matched (case-insensitive, trimmed) against the
	// caller's full name for personal scoping. Empty means the table is
	// public or reference data with no row-level restriction.
	ScopeColumns []string
}

// Tables is the catalog of logical tables served by the engine.
var Tables = map[string]TableDef{
	TableUserDirectory: {
		Name:            TableUserDirectory,
		RequiredColumns: []string{"employee_id", "first_name", "last_name"},
		Exact:           true,
		KeyColumns:      []string{"employee_id"},
	},
	TableAttestationData: {
		Name:            TableAttestationData,
		RequiredColumns: []string{ColLineID, ColMonth, ColPreparerName, ColApproverName, ColDivision, ColStatus},
		KeyColumns:      []string{ColLineID, ColMonth},
		ScopeColumns:    []string{ColPreparerName, ColApproverName},
	},
	TableAttestationScrubbed: {
		Name:            TableAttestationScrubbed,
		RequiredColumns: ScrubbedColumns,
		Exact:           true,
		KeyColumns:      []string{ColLineID, ColMonth},
	},
	TableDataAdminMapping: {
		Name:            TableDataAdminMapping,
		RequiredColumns: []string{"division", "admin_name", "admin_contact"},
		Exact:           true,
		KeyColumns:      []string{"division"},
	},
	TableDeadlines: {
		Name:            TableDeadlines,
		RequiredColumns: []string{"role", "deadline", "reference_link"},
		Exact:           true,
		KeyColumns:      []string{"role"},
	},
}

// ScrubbedColumns is the pre-declared projection of the attestation feed
// that is publicly queryable. It carries assignment identity (who prepares
// and approves a line) but none of the other descriptive columns.
var ScrubbedColumns = []string{
	ColLineID,
	ColMonth,
	ColDivision,
	ColStatus,
	ColPreparerName,
	ColApproverName,
}

// TableFor returns the definition for a logical table name.
func TableFor(name string) (TableDef, bool) {
	def, ok := Tables[name]
	return def, ok
}

// RowPredicate is a row-level visibility condition injected into queries
// by the engine. SQL is a boolean expression over the table's columns with
// ? placeholders bound to Args.
type RowPredicate struct {
	SQL  string
	Args []any
}

// PredicateAll matches every row (public tables).
func PredicateAll() RowPredicate {
	return RowPredicate{SQL: "1=1"}
}

// PredicateNone matches no rows. Used when the caller's identity cannot
// be resolved: personal queries return zero rows rather than erroring.
func PredicateNone() RowPredicate {
	return RowPredicate{SQL: "1=0"}
}
