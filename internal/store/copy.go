package store

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteSQL renders a run as a psql script: table DDL followed by one COPY
// block per table, inside a transaction.
func WriteSQL(w io.Writer, runRow []any, decisions [][]any) error {
	if _, err := fmt.Fprintln(w, "BEGIN;"); err != nil {
		return err
	}
	for _, t := range []*Table{&RunsTable, &DecisionsTable} {
		if _, err := fmt.Fprintf(w, "%s\n\n", t.CreateSQL()); err != nil {
			return err
		}
	}
	if err := writeCopy(w, &RunsTable, [][]any{runRow}); err != nil {
		return err
	}
	if err := writeCopy(w, &DecisionsTable, decisions); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "COMMIT;")
	return err
}

// writeCopy writes a COPY block for a single table.
func writeCopy(w io.Writer, table *Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	_, err := fmt.Fprintf(w, "COPY %s (%s) FROM stdin;\n",
		table.FullName(), strings.Join(table.ColumnNames(), ", "))
	if err != nil {
		return err
	}

	for _, row := range rows {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = escapeCopyValue(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(vals, "\t")); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(w, "\\.\n\n")
	return err
}

// escapeCopyValue escapes a single value for PostgreSQL COPY text format.
// NULL is represented as \N.
func escapeCopyValue(val any) string {
	if val == nil {
		return `\N`
	}

	switch v := val.(type) {
	case bool:
		if v {
			return "t"
		}
		return "f"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.Format("2006-01-02 15:04:05.999999-07")
	case string:
		return escapeString(v)
	default:
		return escapeString(fmt.Sprintf("%v", v))
	}
}

// escapeString applies COPY text format escaping.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
