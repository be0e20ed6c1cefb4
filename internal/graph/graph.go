package graph

import (
	"errors"
	"sort"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// ErrEmptyGraph is returned by Build when no sample resolves to a case or
// control.
var ErrEmptyGraph = errors.New("no valid individuals remain after filtering")

// Edge is an undirected relatedness edge with IID1 < IID2.
type Edge struct {
	IID1   string
	IID2   string
	Metric float64
}

// Graph is an undirected simple graph of related individuals.
type Graph struct {
	// Vertices maps IID -> individual (cases and controls only)
	Vertices map[string]*cohort.Individual

	// Order lists vertex IIDs in sample-table order
	Order []string

	// Adjacency maps IID -> neighbor IID -> metric
	Adjacency map[string]map[string]float64

	// Threshold is the inclusive metric cutoff the edges were built with
	Threshold float64

	edges int
}

// Diagnostics counts the records Build dropped or merged.
type Diagnostics struct {
	Samples           int // sample rows seen
	DuplicateSamples  int // repeated IID in the sample table, later rows ignored
	MissingPhenotype  int // sample without a phenotype row
	Excluded          int // phenotype equals the missing code
	UnrecognizedPheno int // phenotype matches no configured code
	Cases             int
	Controls          int
	KinshipPairs      int // kinship rows seen
	SelfPairs         int // IID1 == IID2
	UnresolvedPairs   int // an endpoint is not in the sample table
	ExcludedPairs     int // an endpoint is in the sample table but not a vertex
	BelowThreshold    int
	DuplicateEdges    int // repeated qualifying pair, max metric kept
}

// Build constructs the relatedness graph. Vertices are the sample rows whose
// phenotype resolves to Case or Control; an edge joins two vertices when a
// kinship row for the pair has metric >= threshold. Repeated pairs keep the
// maximum metric.
func Build(samples []cohort.SampleRecord, phenotypes map[string]string, kinship []cohort.KinshipRecord,
	threshold float64, cls cohort.Classifier) (*Graph, Diagnostics, error) {
	g := &Graph{
		Vertices:  make(map[string]*cohort.Individual),
		Adjacency: make(map[string]map[string]float64),
		Threshold: threshold,
	}
	var diag Diagnostics

	sampled := make(map[string]bool, len(samples))
	for _, s := range samples {
		diag.Samples++
		if sampled[s.IID] {
			diag.DuplicateSamples++
			continue
		}
		sampled[s.IID] = true

		raw, ok := phenotypes[s.IID]
		if !ok {
			diag.MissingPhenotype++
			continue
		}
		class, ok := cls.Resolve(raw)
		if !ok {
			diag.UnrecognizedPheno++
			continue
		}

		switch class {
		case cohort.Excluded:
			diag.Excluded++
			continue
		case cohort.Case:
			diag.Cases++
		case cohort.Control:
			diag.Controls++
		}

		g.Vertices[s.IID] = &cohort.Individual{FID: s.FID, IID: s.IID, Class: class, Raw: raw}
		g.Adjacency[s.IID] = make(map[string]float64)
		g.Order = append(g.Order, s.IID)
	}

	if len(g.Vertices) == 0 {
		return nil, diag, ErrEmptyGraph
	}

	for _, k := range kinship {
		diag.KinshipPairs++
		if k.IID1 == k.IID2 {
			diag.SelfPairs++
			continue
		}
		_, ok1 := g.Vertices[k.IID1]
		_, ok2 := g.Vertices[k.IID2]
		if !ok1 || !ok2 {
			if !sampled[k.IID1] || !sampled[k.IID2] {
				diag.UnresolvedPairs++
			} else {
				diag.ExcludedPairs++
			}
			continue
		}
		if !(k.Metric >= threshold) {
			diag.BelowThreshold++
			continue
		}

		if prev, exists := g.Adjacency[k.IID1][k.IID2]; exists {
			diag.DuplicateEdges++
			if k.Metric <= prev {
				continue
			}
		} else {
			g.edges++
		}
		g.Adjacency[k.IID1][k.IID2] = k.Metric
		g.Adjacency[k.IID2][k.IID1] = k.Metric
	}

	return g, diag, nil
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Degree returns the number of neighbors of iid.
func (g *Graph) Degree(iid string) int {
	return len(g.Adjacency[iid])
}

// Neighbors returns the neighbors of iid in IID order.
func (g *Graph) Neighbors(iid string) []string {
	out := make([]string, 0, len(g.Adjacency[iid]))
	for n := range g.Adjacency[iid] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Related reports whether a and b share an edge.
func (g *Graph) Related(a, b string) bool {
	_, ok := g.Adjacency[a][b]
	return ok
}

// Edges returns every edge once, ordered by (IID1, IID2).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for a, nbrs := range g.Adjacency {
		for b, m := range nbrs {
			if a < b {
				edges = append(edges, Edge{IID1: a, IID2: b, Metric: m})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].IID1 != edges[j].IID1 {
			return edges[i].IID1 < edges[j].IID1
		}
		return edges[i].IID2 < edges[j].IID2
	})
	return edges
}
