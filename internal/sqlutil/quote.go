// Package sqlutil provides SQL identifier helpers for MySQL-compatible stores.
package sqlutil

import "strings"

// QuoteIdentifier quotes a table or column name with backticks,
// escaping embedded backticks by doubling them.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteQualified quotes a table-qualified column reference.
func QuoteQualified(table, column string) string {
	return QuoteIdentifier(table) + "." + QuoteIdentifier(column)
}

// QuoteAll quotes every identifier in a list.
func QuoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = QuoteIdentifier(name)
	}
	return out
}
