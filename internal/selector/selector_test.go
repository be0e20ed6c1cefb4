package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/graph"
)

type pair struct {
	a, b string
}

// buildGraph makes a graph where every IID in cases is a case and all other
// IIDs mentioned in ids or pairs are controls.
func buildGraph(t *testing.T, ids []string, cases []string, pairs []pair) *graph.Graph {
	t.Helper()
	isCase := make(map[string]bool)
	for _, c := range cases {
		isCase[c] = true
	}

	pheno := make(map[string]string)
	var samples []cohort.SampleRecord
	for _, id := range ids {
		samples = append(samples, cohort.SampleRecord{FID: id, IID: id})
		pheno[id] = "0"
		if isCase[id] {
			pheno[id] = "1"
		}
	}

	var kin []cohort.KinshipRecord
	for _, p := range pairs {
		kin = append(kin, cohort.KinshipRecord{IID1: p.a, IID2: p.b, Metric: 0.5})
	}

	g, _, err := graph.Build(samples, pheno, kin, 0.1, cohort.Classifier{CaseValue: "1"})
	require.NoError(t, err)
	return g
}

func solveAll(t *testing.T, g *graph.Graph) ([]string, []Outcome) {
	t.Helper()
	var retained []string
	var outcomes []Outcome
	for _, comp := range graph.FindComponents(g) {
		out, err := Solve(g, comp)
		require.NoError(t, err)
		retained = append(retained, out.Retained...)
		outcomes = append(outcomes, out)
	}
	return retained, outcomes
}

// checkSteps replays the removals against g and verifies the selection rule
// held at every step.
func checkSteps(t *testing.T, g *graph.Graph, comp graph.Component, out Outcome) {
	t.Helper()
	live := make(map[string]bool)
	for _, iid := range comp.IIDs {
		live[iid] = true
	}
	degree := func(iid string) int {
		d := 0
		for nb := range g.Adjacency[iid] {
			if live[nb] {
				d++
			}
		}
		return d
	}

	edges := comp.Edges
	require.LessOrEqual(t, len(out.Steps), comp.Edges)

	for i, step := range out.Steps {
		anyControl := false
		best := -1
		bestIID := ""
		for _, iid := range comp.IIDs {
			if !live[iid] || g.Vertices[iid].Class != cohort.Control {
				continue
			}
			if d := degree(iid); d > 0 {
				anyControl = true
			}
		}
		want := cohort.Control
		if !anyControl {
			want = cohort.Case
		}
		for _, iid := range comp.IIDs {
			if !live[iid] || g.Vertices[iid].Class != want {
				continue
			}
			d := degree(iid)
			if d > best || (d == best && iid < bestIID) {
				best, bestIID = d, iid
			}
		}

		require.Equal(t, bestIID, step.IID, "step %d", i+1)
		require.Equal(t, want, step.Class, "step %d", i+1)
		require.Equal(t, best, step.Degree, "step %d", i+1)
		require.Equal(t, edges, step.EdgesBefore, "step %d", i+1)
		require.Less(t, step.EdgesAfter, step.EdgesBefore, "step %d", i+1)

		live[step.IID] = false
		edges -= best
		require.Equal(t, edges, step.EdgesAfter)
	}
	require.Equal(t, 0, edges)
}

func TestSolve_Example(t *testing.T) {
	g := buildGraph(t,
		[]string{"IID1", "IID2", "IID3", "IID4", "IID5", "IID6", "IID7", "IID8"},
		[]string{"IID1"},
		[]pair{{"IID1", "IID2"}, {"IID2", "IID3"}, {"IID7", "IID8"}})

	retained, outcomes := solveAll(t, g)
	assert.ElementsMatch(t, []string{"IID1", "IID3", "IID4", "IID5", "IID6", "IID8"}, retained)

	assert.Equal(t, []string{"IID2"}, outcomes[0].Removed)
	assert.Equal(t, Step{IID: "IID2", Class: cohort.Control, Degree: 2, EdgesBefore: 2, EdgesAfter: 0}, outcomes[0].Steps[0])
	assert.Equal(t, []string{"IID7"}, outcomes[len(outcomes)-1].Removed)
}

func TestSolve_ControlsBeforeCases(t *testing.T) {
	// case c1 has the highest degree but a related control exists
	g := buildGraph(t,
		[]string{"c1", "c2", "c3", "k1"},
		[]string{"c1", "c2", "c3"},
		[]pair{{"c1", "c2"}, {"c1", "c3"}, {"c1", "k1"}})

	comp := graph.FindComponents(g)[0]
	out, err := Solve(g, comp)
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "c1"}, out.Removed)
	assert.Equal(t, []string{"c2", "c3"}, out.Retained)
	checkSteps(t, g, comp, out)
}

func TestSolve_TieBreakByIID(t *testing.T) {
	g := buildGraph(t, []string{"b", "a", "c"}, nil, []pair{{"a", "b"}, {"b", "c"}, {"a", "c"}})

	out, err := Solve(g, graph.FindComponents(g)[0])
	require.NoError(t, err)

	// triangle: all degree 2, "a" first; then b and c tie at 1, "b" goes
	assert.Equal(t, []string{"a", "b"}, out.Removed)
	assert.Equal(t, []string{"c"}, out.Retained)
}

func TestSolve_TieBreakIsBytewise(t *testing.T) {
	g := buildGraph(t, []string{"a", "B"}, nil, []pair{{"a", "B"}})

	out, err := Solve(g, graph.FindComponents(g)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, out.Removed)
	assert.Equal(t, []string{"a"}, out.Retained)

	g = buildGraph(t, []string{"10", "9"}, nil, []pair{{"10", "9"}})
	out, err = Solve(g, graph.FindComponents(g)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, out.Removed)
}

func TestSolve_CaseOnlyClique(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	var pairs []pair
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			pairs = append(pairs, pair{ids[i], ids[j]})
		}
	}
	g := buildGraph(t, ids, ids, pairs)

	comp := graph.FindComponents(g)[0]
	out, err := Solve(g, comp)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, out.Removed)
	assert.Equal(t, []string{"d"}, out.Retained)
	checkSteps(t, g, comp, out)
}

func TestSolve_StarPrefersHub(t *testing.T) {
	ids := []string{"hub", "s1", "s2", "s3", "s4"}
	g := buildGraph(t, ids, nil, []pair{{"hub", "s1"}, {"hub", "s2"}, {"hub", "s3"}, {"hub", "s4"}})

	out, err := Solve(g, graph.FindComponents(g)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"hub"}, out.Removed)
	assert.Len(t, out.Steps, 1)
}

func TestSolve_IsolatedComponent(t *testing.T) {
	g := buildGraph(t, []string{"solo"}, []string{"solo"}, nil)

	out, err := Solve(g, graph.FindComponents(g)[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, out.Retained)
	assert.Empty(t, out.Removed)
	assert.Empty(t, out.Steps)
}

func TestSolve_RandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := 5 + rng.Intn(40)
		ids := make([]string, n)
		var cases []string
		for i := range ids {
			ids[i] = fmt.Sprintf("S%03d", rng.Intn(1000)*1000+i)
			if rng.Intn(3) == 0 {
				cases = append(cases, ids[i])
			}
		}
		var pairs []pair
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Float64() < 0.12 {
					pairs = append(pairs, pair{ids[i], ids[j]})
				}
			}
		}
		g := buildGraph(t, ids, cases, pairs)

		var retained []string
		for _, comp := range graph.FindComponents(g) {
			out, err := Solve(g, comp)
			require.NoError(t, err)
			checkSteps(t, g, comp, out)

			if comp.Isolated() {
				assert.Equal(t, comp.IIDs, out.Retained)
			}
			assert.Equal(t, len(comp.IIDs), len(out.Retained)+len(out.Removed))

			again, err := Solve(g, comp)
			require.NoError(t, err)
			assert.Equal(t, out, again)

			retained = append(retained, out.Retained...)
		}

		for i := range retained {
			for j := i + 1; j < len(retained); j++ {
				require.False(t, g.Related(retained[i], retained[j]),
					"round %d: %s and %s both retained", round, retained[i], retained[j])
			}
		}
	}
}

func TestInvariantViolationError(t *testing.T) {
	var err error = &InvariantViolation{Component: 3, Step: 2, IID: "x", Edges: 5}
	var iv *InvariantViolation
	require.True(t, errors.As(err, &iv))
	assert.Equal(t, "selector invariant violated in component 3 at step 2: removing x left 5 live edges", err.Error())
}
