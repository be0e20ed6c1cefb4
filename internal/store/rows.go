// Package store persists selection runs to PostgreSQL, or renders them as a
// COPY-format SQL script for loading later.
package store

import (
	"time"

	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/selection"
)

// Run describes one selection run.
type Run struct {
	ID           string
	StartedAt    time.Time
	SamplesPath  string
	KinshipPath  string
	Threshold    float64
	CaseValue    string
	ControlValue string // empty means every non-case, non-missing value
}

// NewRunID derives a run ID from the start time.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// RunRow returns the kinship_selection_runs row for run.
func RunRow(run Run, g *graph.Graph, res *selection.Result) []any {
	var control any
	if run.ControlValue != "" {
		control = run.ControlValue
	}
	return []any{
		run.ID,
		run.StartedAt,
		run.SamplesPath,
		run.KinshipPath,
		run.Threshold,
		run.CaseValue,
		control,
		int32(len(g.Vertices)),
		int32(g.EdgeCount()),
		int32(len(res.Retained)),
		int32(len(res.Removed)),
	}
}

// DecisionRows returns the kinship_selection_decisions rows in sample-table
// order. removal_step is NULL for retained individuals.
func DecisionRows(runID string, g *graph.Graph, res *selection.Result) [][]any {
	rows := make([][]any, 0, len(g.Order))
	for _, iid := range g.Order {
		ind := g.Vertices[iid]
		d := res.Decisions[iid]
		var step any
		if !d.Retained {
			step = int32(d.RemovalStep)
		}
		rows = append(rows, []any{
			runID,
			ind.FID,
			ind.IID,
			ind.Raw,
			ind.Class.String(),
			d.Retained,
			int32(d.Component),
			int32(d.ComponentSize),
			int32(d.Degree),
			step,
		})
	}
	return rows
}
