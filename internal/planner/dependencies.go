package planner

import "sort"

// DependencyResolver answers dependency queries over a built graph
type DependencyResolver struct {
	graph *Graph
}

// NewDependencyResolver creates a resolver for g
func NewDependencyResolver(g *Graph) *DependencyResolver {
	return &DependencyResolver{graph: g}
}

// Dependents returns the steps that read directly from a step, sorted
func (dr *DependencyResolver) Dependents(step string) []string {
	dependents := make([]string, 0)
	for _, n := range dr.graph.steps {
		for _, dep := range n.DependsOn() {
			if dep == step {
				dependents = append(dependents, n.Name)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// TransitiveDependents returns every step that eventually reads from a
// step, sorted. These are the steps a failure of step leaves unrun.
func (dr *DependencyResolver) TransitiveDependents(step string) []string {
	visited := make(map[string]bool)

	var traverse func(string)
	traverse = func(name string) {
		for _, dep := range dr.Dependents(name) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			traverse(dep)
		}
	}
	traverse(step)

	result := make([]string, 0, len(visited))
	for name := range visited {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
