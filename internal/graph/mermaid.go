package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// WriteMermaid writes the related (non-isolated) components in Mermaid
// format to w. Each component is a subgraph; cases are drawn as rounded
// nodes and edges are labeled with their metric.
func WriteMermaid(w io.Writer, g *Graph) error {
	if _, err := fmt.Fprintln(w, "graph LR"); err != nil {
		return err
	}

	n := 0
	for _, comp := range FindComponents(g) {
		if comp.Isolated() {
			continue
		}
		n++
		if n > 1 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "    subgraph component_%d\n", n)

		for _, iid := range comp.IIDs {
			fmt.Fprintf(w, "        %s\n", mermaidNode(g.Vertices[iid]))
		}
		for _, iid := range comp.IIDs {
			for _, nb := range g.Neighbors(iid) {
				if iid < nb {
					fmt.Fprintf(w, "        %s ---|%.4g| %s\n", mermaidID(iid), g.Adjacency[iid][nb], mermaidID(nb))
				}
			}
		}

		if _, err := fmt.Fprintln(w, "    end"); err != nil {
			return err
		}
	}

	return nil
}

// WriteText writes a text summary of the graph to w.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	isolated := 0
	var related []Component
	for _, comp := range components {
		if comp.Isolated() {
			isolated++
			continue
		}
		related = append(related, comp)
	}

	fmt.Fprintf(w, "Individuals: %d\n", len(g.Vertices))
	fmt.Fprintf(w, "Related pairs (metric >= %g): %d\n", g.Threshold, g.EdgeCount())
	fmt.Fprintf(w, "Unrelated individuals: %d\n", isolated)
	fmt.Fprintf(w, "Related components: %d\n\n", len(related))

	for i, comp := range related {
		cases := 0
		for _, iid := range comp.IIDs {
			if g.Vertices[iid].Class == cohort.Case {
				cases++
			}
		}
		fmt.Fprintf(w, "=== Component %d (%d individuals, %d cases, %d pairs) ===\n",
			i+1, len(comp.IIDs), cases, comp.Edges)

		for _, iid := range comp.IIDs {
			fmt.Fprintf(w, "  %s (%s, %d relatives): %s\n",
				iid, g.Vertices[iid].Class, g.Degree(iid), strings.Join(g.Neighbors(iid), ", "))
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

func mermaidNode(ind *cohort.Individual) string {
	id := mermaidID(ind.IID)
	if ind.Class == cohort.Case {
		return fmt.Sprintf("%s([%q])", id, ind.IID)
	}
	return fmt.Sprintf("%s[%q]", id, ind.IID)
}

// mermaidID converts an IID to a Mermaid-safe node ID.
func mermaidID(iid string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, r := range iid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteString(fmt.Sprintf("x%x", r))
		}
	}
	return b.String()
}
