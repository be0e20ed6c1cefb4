package selection

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/ctxlog"
	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/selector"
)

// Options tune a selection run.
type Options struct {
	// Workers bounds how many components are solved concurrently. Zero
	// means runtime.NumCPU().
	Workers int
}

// Selector partitions a relatedness graph into retained and removed
// individuals.
type Selector struct {
	g    *graph.Graph
	opts Options

	components []graph.Component
	outcomes   []selector.Outcome
}

// New creates a new Selector.
func New(g *graph.Graph, opts Options) *Selector {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Selector{g: g, opts: opts}
}

// Run splits the graph into components, solves every component that has an
// edge, and assembles the result.
func (s *Selector) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	s.components = graph.FindComponents(s.g)
	s.outcomes = make([]selector.Outcome, len(s.components))

	var related []int
	for i, comp := range s.components {
		if comp.Isolated() {
			s.outcomes[i] = selector.Outcome{Component: comp.ID, Retained: comp.IIDs}
			continue
		}
		related = append(related, i)
	}
	logger.Info("components found",
		"total", len(s.components),
		"related", len(related),
		"isolated", len(s.components)-len(related))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Workers)
	for _, i := range related {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out, err := selector.Solve(s.g, s.components[i])
			if err != nil {
				return fmt.Errorf("solving component %d: %w", s.components[i].ID, err)
			}
			// each goroutine owns its slot
			s.outcomes[i] = out
			logger.Debug("component solved",
				"component", out.Component,
				"size", len(s.components[i].IIDs),
				"edges", s.components[i].Edges,
				"removed", len(out.Removed))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := s.assemble()
	if err := res.Verify(s.g); err != nil {
		return nil, err
	}
	return res, nil
}

// assemble unions the per-component outcomes. Retained and Removed follow
// sample-table order.
func (s *Selector) assemble() *Result {
	res := &Result{
		Decisions:  make(map[string]Decision, len(s.g.Vertices)),
		Components: len(s.components),
	}

	for i, out := range s.outcomes {
		comp := s.components[i]
		if !comp.Isolated() {
			res.RelatedComponents++
		}
		for _, iid := range out.Retained {
			res.Decisions[iid] = Decision{
				Component:     comp.ID,
				ComponentSize: len(comp.IIDs),
				Degree:        s.g.Degree(iid),
				Retained:      true,
			}
		}
		for n, st := range out.Steps {
			res.Decisions[st.IID] = Decision{
				Component:     comp.ID,
				ComponentSize: len(comp.IIDs),
				Degree:        s.g.Degree(st.IID),
				RemovalStep:   n + 1,
				LiveDegree:    st.Degree,
			}
		}
		res.Steps = append(res.Steps, out.Steps...)
	}

	for _, iid := range s.g.Order {
		ind := *s.g.Vertices[iid]
		d := res.Decisions[iid]
		if d.Retained {
			res.Retained = append(res.Retained, ind)
			if ind.Class == cohort.Case {
				res.CasesRetained++
			} else {
				res.ControlsRetained++
			}
			continue
		}
		res.Removed = append(res.Removed, ind)
		if ind.Class == cohort.Case {
			res.CasesRemoved++
		} else {
			res.ControlsRemoved++
		}
	}

	return res
}

// Summary returns human-readable result lines for reporting.
func (s *Selector) Summary(res *Result) []string {
	sizes := make(map[int]int)
	for _, comp := range s.components {
		if !comp.Isolated() {
			sizes[len(comp.IIDs)]++
		}
	}
	keys := make([]int, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	lines := []string{
		fmt.Sprintf("  individuals: %d (%d related)", len(s.g.Vertices), len(s.g.Vertices)-(res.Components-res.RelatedComponents)),
		fmt.Sprintf("  related pairs: %d in %d components", s.g.EdgeCount(), res.RelatedComponents),
		fmt.Sprintf("  cases retained: %d, removed: %d", res.CasesRetained, res.CasesRemoved),
		fmt.Sprintf("  controls retained: %d, removed: %d", res.ControlsRetained, res.ControlsRemoved),
	}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  components of size %d: %d", k, sizes[k]))
	}
	return lines
}
