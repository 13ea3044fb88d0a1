package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when descriptors depend on each other in a loop.
var ErrCycle = errors.New("dependency cycle detected")

// =============================================================================
// Dependency Ordering
// =============================================================================

// ApplyOrder returns identities sorted so every descriptor comes after the
// descriptors it references, using Kahn's algorithm. Ties are broken by
// identity so the order is stable across runs. References that do not
// resolve within the graph are ignored here; the invariant checker reports
// them.
//
// Example:
//
//	// aws_ecs_service.agents → aws_ecs_cluster.agents
//	order, _ := g.ApplyOrder()
//	// cluster precedes service
func (g *Graph) ApplyOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.descriptors))
	dependents := make(map[string][]string)

	for _, d := range g.descriptors {
		if _, ok := inDegree[d.Identity]; !ok {
			inDegree[d.Identity] = 0
		}
		for _, ref := range d.References {
			if !g.Has(ref) {
				continue
			}
			inDegree[d.Identity]++
			dependents[ref] = append(dependents[ref], d.Identity)
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(g.descriptors))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		var ready []string
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		if len(ready) > 0 {
			queue = append(queue, ready...)
			sort.Strings(queue)
		}
	}

	if len(result) < len(inDegree) {
		var stuck []string
		for id, degree := range inDegree {
			if degree > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %v", ErrCycle, stuck)
	}

	return result, nil
}

// DestroyOrder returns the reverse of ApplyOrder.
func (g *Graph) DestroyOrder() ([]string, error) {
	order, err := g.ApplyOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
