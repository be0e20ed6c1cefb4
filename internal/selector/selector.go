// Package selector reduces a connected component of the relatedness graph to
// an unrelated subset by greedy vertex removal.
//
// At every step the candidate pool is the set of live controls that still
// have a live relative; only when no such control exists do cases become
// candidates. Within the pool the vertex with the highest live degree is
// removed, ties going to the smallest IID in byte order.
package selector

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/graph"
)

// Step records one removal.
type Step struct {
	IID         string
	Class       cohort.Class
	Degree      int // live degree at removal
	EdgesBefore int
	EdgesAfter  int
}

// Outcome partitions a component into retained and removed individuals.
type Outcome struct {
	Component int
	Retained  []string // IID order
	Removed   []string // removal order
	Steps     []Step
}

// InvariantViolation reports a removal step that failed to shrink the live
// edge set. It indicates a bug, not bad input.
type InvariantViolation struct {
	Component int
	Step      int
	IID       string
	Edges     int
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("selector invariant violated in component %d at step %d: removing %s left %d live edges",
		e.Component, e.Step, e.IID, e.Edges)
}

// Solve runs the priority-greedy removal on one component of g.
func Solve(g *graph.Graph, comp graph.Component) (Outcome, error) {
	out := Outcome{Component: comp.ID}
	if comp.Isolated() {
		out.Retained = append([]string(nil), comp.IIDs...)
		return out, nil
	}

	w := newWorkset(g, comp)
	total := w.edges

	for w.edges > 0 {
		if len(out.Steps) >= total {
			return out, &InvariantViolation{Component: comp.ID, Step: len(out.Steps) + 1, Edges: w.edges}
		}

		v, ok := w.controls.next(w)
		if !ok {
			v, ok = w.cases.next(w)
		}
		if !ok {
			return out, &InvariantViolation{Component: comp.ID, Step: len(out.Steps) + 1, Edges: w.edges}
		}

		before := w.edges
		deg := w.remove(v)
		if w.edges >= before {
			return out, &InvariantViolation{Component: comp.ID, Step: len(out.Steps) + 1, IID: w.iids[v], Edges: w.edges}
		}

		out.Removed = append(out.Removed, w.iids[v])
		out.Steps = append(out.Steps, Step{
			IID:         w.iids[v],
			Class:       w.class[v],
			Degree:      deg,
			EdgesBefore: before,
			EdgesAfter:  w.edges,
		})
	}

	for i, iid := range w.iids {
		if w.live[i] {
			out.Retained = append(out.Retained, iid)
		}
	}
	return out, nil
}

// workset is the mutable copy of one component. Vertices are indexed in IID
// order, so a smaller index always means a smaller IID.
type workset struct {
	iids   []string
	class  []cohort.Class
	adj    [][]int
	live   []bool
	degree []int
	edges  int

	controls *pool
	cases    *pool
}

func newWorkset(g *graph.Graph, comp graph.Component) *workset {
	iids := append([]string(nil), comp.IIDs...)
	sort.Strings(iids)

	index := make(map[string]int, len(iids))
	for i, iid := range iids {
		index[iid] = i
	}

	w := &workset{
		iids:     iids,
		class:    make([]cohort.Class, len(iids)),
		adj:      make([][]int, len(iids)),
		live:     make([]bool, len(iids)),
		degree:   make([]int, len(iids)),
		controls: &pool{},
		cases:    &pool{},
	}

	for i, iid := range iids {
		w.class[i] = g.Vertices[iid].Class
		w.live[i] = true
		for nb := range g.Adjacency[iid] {
			w.adj[i] = append(w.adj[i], index[nb])
		}
		w.degree[i] = len(w.adj[i])
		w.edges += w.degree[i]
		w.poolFor(i).push(i, w.degree[i])
	}
	w.edges /= 2

	return w
}

func (w *workset) poolFor(v int) *pool {
	if w.class[v] == cohort.Case {
		return w.cases
	}
	return w.controls
}

// remove marks v removed and returns its live degree at removal.
func (w *workset) remove(v int) int {
	deg := w.degree[v]
	w.live[v] = false
	w.degree[v] = 0

	for _, u := range w.adj[v] {
		if !w.live[u] {
			continue
		}
		w.degree[u]--
		w.edges--
		if w.degree[u] > 0 {
			w.poolFor(u).push(u, w.degree[u])
		}
	}
	return deg
}

// pool is a lazy max-heap of (degree, index). Degrees only decrease, so an
// entry is current iff its vertex is live and the recorded degree equals
// the live degree; stale entries are discarded on pop.
type pool struct {
	h entryHeap
}

type entry struct {
	degree int
	v      int
}

func (p *pool) push(v, degree int) {
	if degree > 0 {
		heap.Push(&p.h, entry{degree: degree, v: v})
	}
}

// next pops the highest-degree live candidate, or false if none remain.
func (p *pool) next(w *workset) (int, bool) {
	for p.h.Len() > 0 {
		e := heap.Pop(&p.h).(entry)
		if w.live[e.v] && w.degree[e.v] == e.degree && e.degree > 0 {
			return e.v, true
		}
	}
	return 0, false
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].degree != h[j].degree {
		return h[i].degree > h[j].degree
	}
	return h[i].v < h[j].v
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
