package store

import (
	"fmt"
	"strings"
)

// Column represents a database column.
type Column struct {
	Name     string
	DataType string // PostgreSQL type name
	Nullable bool
}

// Table represents a table the store writes.
type Table struct {
	Schema     string
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// FullName returns schema-qualified table name.
func (t *Table) FullName() string {
	return t.Schema + "." + t.Name
}

// ColumnNames returns all column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateSQL returns a CREATE TABLE IF NOT EXISTS statement for t.
func (t *Table) CreateSQL() string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def := c.Name + " " + c.DataType
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n);", t.FullName(), strings.Join(defs, ",\n\t"))
}

// RunsTable holds one row per selection run.
var RunsTable = Table{
	Schema: "public",
	Name:   "kinship_selection_runs",
	Columns: []Column{
		{Name: "run_id", DataType: "text"},
		{Name: "started_at", DataType: "timestamptz"},
		{Name: "samples_path", DataType: "text"},
		{Name: "kinship_path", DataType: "text"},
		{Name: "threshold", DataType: "float8"},
		{Name: "case_value", DataType: "text"},
		{Name: "control_value", DataType: "text", Nullable: true},
		{Name: "individuals", DataType: "int4"},
		{Name: "related_pairs", DataType: "int4"},
		{Name: "retained", DataType: "int4"},
		{Name: "removed", DataType: "int4"},
	},
	PrimaryKey: []string{"run_id"},
}

// DecisionsTable holds one row per individual per run.
var DecisionsTable = Table{
	Schema: "public",
	Name:   "kinship_selection_decisions",
	Columns: []Column{
		{Name: "run_id", DataType: "text"},
		{Name: "fid", DataType: "text"},
		{Name: "iid", DataType: "text"},
		{Name: "phenotype", DataType: "text"},
		{Name: "class", DataType: "text"},
		{Name: "retained", DataType: "bool"},
		{Name: "component", DataType: "int4"},
		{Name: "component_size", DataType: "int4"},
		{Name: "degree", DataType: "int4"},
		{Name: "removal_step", DataType: "int4", Nullable: true},
	},
	PrimaryKey: []string{"run_id", "iid"},
}
