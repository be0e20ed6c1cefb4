// Package selection runs the greedy unrelated-subset selection over every
// component of a relatedness graph and assembles the retained and removed
// sets.
package selection

import (
	"fmt"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/selector"
)

// Decision is the fate of one individual.
type Decision struct {
	Component     int
	ComponentSize int
	Degree        int // degree in the full graph
	Retained      bool
	RemovalStep   int // 1-based within the component, 0 when retained
	LiveDegree    int // live degree at removal
}

// Result is the outcome of a selection run.
type Result struct {
	// Retained and Removed follow sample-table order
	Retained []cohort.Individual
	Removed  []cohort.Individual

	Decisions map[string]Decision
	Steps     []selector.Step

	Components        int
	RelatedComponents int

	CasesRetained    int
	CasesRemoved     int
	ControlsRetained int
	ControlsRemoved  int
}

// Verify checks that Retained and Removed partition the vertices of g and
// that no two retained individuals are related.
func (r *Result) Verify(g *graph.Graph) error {
	if n := len(r.Retained) + len(r.Removed); n != len(g.Vertices) {
		return fmt.Errorf("result covers %d individuals, graph has %d", n, len(g.Vertices))
	}

	seen := make(map[string]bool, len(g.Vertices))
	for _, set := range [][]cohort.Individual{r.Retained, r.Removed} {
		for _, ind := range set {
			if _, ok := g.Vertices[ind.IID]; !ok {
				return fmt.Errorf("result holds %s, which is not in the graph", ind.IID)
			}
			if seen[ind.IID] {
				return fmt.Errorf("%s is both retained and removed", ind.IID)
			}
			seen[ind.IID] = true
		}
	}

	kept := make(map[string]bool, len(r.Retained))
	for _, ind := range r.Retained {
		kept[ind.IID] = true
	}
	for _, ind := range r.Retained {
		for nb := range g.Adjacency[ind.IID] {
			if kept[nb] {
				return fmt.Errorf("retained individuals %s and %s are related", ind.IID, nb)
			}
		}
	}
	return nil
}
