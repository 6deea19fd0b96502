// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulkload

import (
	"fmt"
	"strings"

	"pgload/cli/internal/job"
)

// QuoteIdent quotes a possibly schema-qualified identifier for safe
// interpolation into COPY and TRUNCATE statements.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// quoteLiteral quotes a string literal for a COPY option.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// BuildCopySQL renders the COPY statement for the target table and dialect.
// The record terminator is absent on purpose: the session normalizes records
// to newline termination before they reach the wire.
func BuildCopySQL(table string, columns []string, d job.Dialect) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	return fmt.Sprintf(
		"COPY %s (%s) FROM STDIN WITH (FORMAT csv, DELIMITER %s, QUOTE %s, NULL %s)",
		QuoteIdent(table),
		strings.Join(quoted, ", "),
		quoteLiteral(string(d.Delimiter)),
		quoteLiteral(string(d.Quote)),
		quoteLiteral(d.Null),
	)
}
