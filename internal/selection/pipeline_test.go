package selection

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/graph"
)

func exampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	var samples []cohort.SampleRecord
	pheno := make(map[string]string)
	for i := 1; i <= 8; i++ {
		iid := fmt.Sprintf("IID%d", i)
		samples = append(samples, cohort.SampleRecord{FID: "F" + iid, IID: iid})
		pheno[iid] = "0"
	}
	pheno["IID1"] = "1"
	kin := []cohort.KinshipRecord{
		{IID1: "IID1", IID2: "IID2", Metric: 0.5},
		{IID1: "IID2", IID2: "IID3", Metric: 0.25},
		{IID1: "IID1", IID2: "IID3", Metric: 0.15},
		{IID1: "IID5", IID2: "IID6", Metric: 0.03},
		{IID1: "IID7", IID2: "IID8", Metric: 0.4},
	}
	g, _, err := graph.Build(samples, pheno, kin, 0.2, cohort.Classifier{CaseValue: "1"})
	require.NoError(t, err)
	return g
}

func iids(inds []cohort.Individual) []string {
	out := make([]string, len(inds))
	for i, ind := range inds {
		out[i] = ind.IID
	}
	return out
}

func TestRun_Example(t *testing.T) {
	g := exampleGraph(t)

	s := New(g, Options{Workers: 2})
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"IID1", "IID3", "IID4", "IID5", "IID6", "IID8"}, iids(res.Retained))
	assert.Equal(t, []string{"IID2", "IID7"}, iids(res.Removed))
	assert.Equal(t, "FIID1", res.Retained[0].FID)

	assert.Equal(t, 5, res.Components)
	assert.Equal(t, 2, res.RelatedComponents)
	assert.Equal(t, 1, res.CasesRetained)
	assert.Equal(t, 0, res.CasesRemoved)
	assert.Equal(t, 5, res.ControlsRetained)
	assert.Equal(t, 2, res.ControlsRemoved)

	assert.Equal(t, Decision{Component: 0, ComponentSize: 3, Degree: 2, RemovalStep: 1, LiveDegree: 2}, res.Decisions["IID2"])
	assert.Equal(t, Decision{Component: 0, ComponentSize: 3, Degree: 1, Retained: true}, res.Decisions["IID1"])
	assert.Equal(t, Decision{Component: 4, ComponentSize: 2, Degree: 1, RemovalStep: 1, LiveDegree: 1}, res.Decisions["IID7"])
	assert.Equal(t, Decision{Component: 2, ComponentSize: 1, Retained: true}, res.Decisions["IID5"])

	lines := s.Summary(res)
	assert.Contains(t, lines, "  individuals: 8 (5 related)")
	assert.Contains(t, lines, "  related pairs: 3 in 2 components")
	assert.Contains(t, lines, "  controls retained: 5, removed: 2")
	assert.Contains(t, lines, "  components of size 2: 1")
	assert.Contains(t, lines, "  components of size 3: 1")
}

func TestRun_WorkerCountDoesNotChangeResult(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	var samples []cohort.SampleRecord
	pheno := make(map[string]string)
	for i := 0; i < 300; i++ {
		iid := fmt.Sprintf("S%03d", i)
		samples = append(samples, cohort.SampleRecord{FID: iid, IID: iid})
		pheno[iid] = fmt.Sprint(r.Intn(2))
	}
	var kin []cohort.KinshipRecord
	for i := 0; i < 400; i++ {
		a, b := r.Intn(300), r.Intn(300)
		kin = append(kin, cohort.KinshipRecord{
			IID1:   fmt.Sprintf("S%03d", a),
			IID2:   fmt.Sprintf("S%03d", b),
			Metric: r.Float64() * 0.5,
		})
	}
	g, _, err := graph.Build(samples, pheno, kin, 0.1, cohort.Classifier{CaseValue: "1"})
	require.NoError(t, err)

	base, err := New(g, Options{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, base.Verify(g))

	for _, workers := range []int{0, 2, 8, 64} {
		res, err := New(g, Options{Workers: workers}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, iids(base.Retained), iids(res.Retained), "workers=%d", workers)
		assert.Equal(t, iids(base.Removed), iids(res.Removed), "workers=%d", workers)
		assert.Equal(t, base.Decisions, res.Decisions, "workers=%d", workers)
	}
}

func TestRun_NoEdges(t *testing.T) {
	g, _, err := graph.Build(
		[]cohort.SampleRecord{{FID: "f", IID: "b"}, {FID: "f", IID: "a"}},
		map[string]string{"a": "1", "b": "0"},
		nil, 0.1, cohort.Classifier{CaseValue: "1"})
	require.NoError(t, err)

	res, err := New(g, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, iids(res.Retained))
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Steps)
	assert.Equal(t, 0, res.RelatedComponents)
}

func TestRun_CanceledContext(t *testing.T) {
	g := exampleGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(g, Options{Workers: 1}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerify(t *testing.T) {
	g := exampleGraph(t)
	res, err := New(g, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Verify(g))

	related := *res
	related.Retained = append(append([]cohort.Individual(nil), res.Retained...), res.Removed[0])
	related.Removed = res.Removed[1:]
	assert.EqualError(t, related.Verify(g), "retained individuals IID1 and IID2 are related")

	short := *res
	short.Removed = nil
	assert.EqualError(t, short.Verify(g), "result covers 6 individuals, graph has 8")

	dup := *res
	dup.Removed = []cohort.Individual{res.Retained[0], res.Removed[1]}
	assert.EqualError(t, dup.Verify(g), "IID1 is both retained and removed")
}
