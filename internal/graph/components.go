package graph

import "sort"

// Component is a connected component of related individuals.
type Component struct {
	ID    int      // position in FindComponents output
	IIDs  []string // sorted
	Edges int
}

// Isolated reports whether the component has no edges. Such components are
// retained as a whole without running the selector.
func (c Component) Isolated() bool {
	return c.Edges == 0
}

// FindComponents detects connected components using BFS. Start vertices are
// visited in IID order, so component IDs are stable across runs.
func FindComponents(g *Graph) []Component {
	starts := make([]string, 0, len(g.Vertices))
	for iid := range g.Vertices {
		starts = append(starts, iid)
	}
	sort.Strings(starts)

	visited := make(map[string]bool, len(starts))
	var components []Component

	for _, iid := range starts {
		if visited[iid] {
			continue
		}
		visited[iid] = true

		// isolated vertices are the overwhelming majority
		if len(g.Adjacency[iid]) == 0 {
			components = append(components, Component{ID: len(components), IIDs: []string{iid}})
			continue
		}

		comp := bfs(g, iid, visited)
		comp.ID = len(components)
		components = append(components, comp)
	}

	return components
}

func bfs(g *Graph, start string, visited map[string]bool) Component {
	queue := []string{start}
	degreeSum := 0

	for qi := 0; qi < len(queue); qi++ {
		node := queue[qi]
		degreeSum += len(g.Adjacency[node])

		for neighbor := range g.Adjacency[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	sort.Strings(queue)
	return Component{IIDs: queue, Edges: degreeSum / 2}
}
