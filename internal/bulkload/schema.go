// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulkload

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// parseTableName splits an optionally schema-qualified name into schema and
// table, defaulting the schema to "public".
func parseTableName(name string) (schema, table string) {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "public", name
}

// tableColumns resolves the loadable columns of the target table, in
// ordinal order. Generated columns are excluded because COPY may not
// assign them. An empty result means the table does not exist.
func tableColumns(ctx context.Context, conn *pgx.Conn, name string) ([]string, error) {
	schema, table := parseTableName(name)

	rows, err := conn.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		  AND is_generated = 'NEVER'
		ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s does not exist or has no columns", schema, table)
	}
	return columns, nil
}
