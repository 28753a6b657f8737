package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blogem/attest-desk/models"
)

// The SQL guard is the security boundary between the drafting collaborator
// and the snapshot store. Drafts are untrusted text: everything here
// rejects rather than repairs, and the scope predicate is injected by the
// engine after validation so a malicious or erroneous draft can never
// widen visibility.

// forbiddenKeywords are tokens that have no place in a read-only,
// single-statement query.
var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "replace": true,
	"drop": true, "alter": true, "create": true, "truncate": true,
	"attach": true, "detach": true, "pragma": true, "vacuum": true,
	"reindex": true, "analyze": true, "into": true,
	"begin": true, "commit": true, "rollback": true, "savepoint": true,
	"transaction": true, "grant": true, "revoke": true,
	"exec": true, "execute": true, "load_extension": true,
}

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// ValidateDraft checks a drafted query against the selected table and
// returns the cleaned statement. Any reference to another table, any
// write or DDL construct, and anything beyond one read-only statement is
// an UnsafeQueryError.
func ValidateDraft(draft, selected string) (string, error) {
	clean := strings.TrimSuffix(strings.TrimSpace(draft), ";")
	clean = strings.TrimSpace(clean)

	if clean == "" {
		return "", &models.UnsafeQueryError{Reason: "empty draft"}
	}
	if strings.Contains(clean, ";") {
		return "", &models.UnsafeQueryError{Reason: "multiple statements"}
	}
	if strings.Contains(clean, "--") || strings.Contains(clean, "/*") {
		return "", &models.UnsafeQueryError{Reason: "comments are not allowed"}
	}
	if !strings.HasPrefix(strings.ToLower(clean), "select") {
		return "", &models.UnsafeQueryError{Reason: "only SELECT statements are allowed"}
	}

	sawSelected := false
	for _, raw := range identPattern.FindAllString(clean, -1) {
		token := strings.ToLower(raw)

		if forbiddenKeywords[token] {
			return "", &models.UnsafeQueryError{Reason: fmt.Sprintf("forbidden keyword %q", raw)}
		}
		if strings.HasPrefix(token, "sqlite_") {
			return "", &models.UnsafeQueryError{Reason: "system tables are not queryable"}
		}
		// pragma_table_info and friends are table-valued functions that
		// would expose physical snapshot names as metadata.
		if strings.HasPrefix(token, "pragma_") {
			return "", &models.UnsafeQueryError{Reason: fmt.Sprintf("forbidden function %q", raw)}
		}

		for name := range models.Tables {
			if token == name && name != selected {
				return "", &models.UnsafeQueryError{
					Reason: fmt.Sprintf("references table %q outside the selected %q", name, selected),
				}
			}
			// Physical snapshot versions are the engine's concern; drafts
			// must use the logical name.
			if strings.HasPrefix(token, name+"_v") {
				return "", &models.UnsafeQueryError{Reason: fmt.Sprintf("references snapshot table %q directly", raw)}
			}
		}

		if token == selected {
			sawSelected = true
		}
	}

	if !sawSelected {
		return "", &models.UnsafeQueryError{Reason: fmt.Sprintf("does not reference the selected table %q", selected)}
	}

	return clean, nil
}

// InjectScope rewrites every reference to the logical table into a scoped
// subquery over the physical snapshot table, binding the predicate's
// placeholders once per occurrence. The draft never carries the predicate
// itself.
func InjectScope(draft, logical, physical string, pred models.RowPredicate) (string, []any, error) {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(logical) + `\b`)
	replacement := fmt.Sprintf(`(SELECT * FROM %q WHERE %s)`, physical, pred.SQL)

	inLiteral := literalMask(draft)
	replaced := 0
	var out strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(draft, -1) {
		// Skip qualified column references (x.attestation_data or
		// attestation_data.col): those are not table positions. Leaving a
		// qualified reference unrewritten fails at execution, which is a
		// rejection, not a leak.
		if loc[0] > 0 && (draft[loc[0]-1] == '.' || draft[loc[0]-1] == '"') {
			continue
		}
		if loc[1] < len(draft) && (draft[loc[1]] == '.' || draft[loc[1]] == '"') {
			continue
		}
		// The table name inside a string literal is data, not a table
		// position.
		if inLiteral[loc[0]] {
			continue
		}

		out.WriteString(draft[last:loc[0]])
		out.WriteString(replacement)
		last = loc[1]
		replaced++
	}
	out.WriteString(draft[last:])

	if replaced == 0 {
		return "", nil, &models.UnsafeQueryError{Reason: "no rewritable reference to the selected table"}
	}

	args := make([]any, 0, replaced*len(pred.Args))
	for i := 0; i < replaced; i++ {
		args = append(args, pred.Args...)
	}
	return out.String(), args, nil
}

// literalMask marks every byte inside a single-quoted SQL string literal,
// honoring the '' escape.
func literalMask(s string) []bool {
	mask := make([]bool, len(s))
	inside := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			if inside && i+1 < len(s) && s[i+1] == '\'' {
				mask[i] = true
				mask[i+1] = true
				i++
				continue
			}
			inside = !inside
			mask[i] = true
			continue
		}
		mask[i] = inside
	}
	return mask
}

// WrapWithCap bounds the result size. The extra row lets the executor
// detect truncation.
func WrapWithCap(query string, cap int) string {
	return fmt.Sprintf(`SELECT * FROM (%s) LIMIT %d`, query, cap+1)
}
