package main

import (
	"strings"

	"github.com/cuemby/slotdb/internal/types"
)

// tabulate renders rows as a simple pipe-delimited table, good enough
// for scripting and manual inspection from exec/serve output.
func tabulate(schema []string, rows []types.Row) string {
	var b strings.Builder
	b.WriteString(strings.Join(schema, " | "))
	b.WriteString("\n")
	for _, row := range rows {
		fields := make([]string, len(row.Values))
		for i, v := range row.Values {
			fields[i] = v.String()
		}
		b.WriteString(strings.Join(fields, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
