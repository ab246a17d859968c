package planner

import (
	"fmt"

	"github.com/sourceplane/apexflow/internal/model"
)

// Graph is the DAG of steps of one pipeline or template body
type Graph struct {
	Name        string
	Inputs      model.Ports
	Outputs     map[string]model.Binding
	OutputPorts model.Ports

	steps []*StepNode
	index map[string]*StepNode
}

// Steps returns the steps in insertion order
func (g *Graph) Steps() []*StepNode {
	return append([]*StepNode(nil), g.steps...)
}

// Step looks up a step by name
func (g *Graph) Step(name string) (*StepNode, bool) {
	n, ok := g.index[name]
	return n, ok
}

// DetectCycles performs cycle detection on the step dependency graph using
// DFS. The error names the step that closes the cycle.
func (g *Graph) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, n := range g.steps {
		if !visited[n.Name] {
			if step, found := g.hasCycleDFS(n.Name, visited, recStack); found {
				return model.Bindingf("graph %s: cycle detected in step dependencies at step %s", g.Name, step)
			}
		}
	}

	return nil
}

func (g *Graph) hasCycleDFS(node string, visited, recStack map[string]bool) (string, bool) {
	visited[node] = true
	recStack[node] = true

	step, exists := g.index[node]
	if !exists {
		return "", false
	}

	for _, dep := range step.DependsOn() {
		if !visited[dep] {
			if at, found := g.hasCycleDFS(dep, visited, recStack); found {
				return at, true
			}
		} else if recStack[dep] {
			return dep, true
		}
	}

	recStack[node] = false
	return "", false
}

// TopologicalOrder sorts steps with Kahn's algorithm. Ties keep insertion order.
func (g *Graph) TopologicalOrder() ([]*StepNode, error) {
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for _, n := range g.steps {
		inDegree[n.Name] = 0
	}
	for _, n := range g.steps {
		for _, dep := range n.DependsOn() {
			if _, ok := g.index[dep]; !ok {
				return nil, model.Bindingf("graph %s: step %s depends on unknown step %q", g.Name, n.Name, dep)
			}
			dependents[dep] = append(dependents[dep], n.Name)
			inDegree[n.Name]++
		}
	}

	queue := make([]string, 0)
	for _, n := range g.steps {
		if inDegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}

	sorted := make([]*StepNode, 0, len(g.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, g.index[current])

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.steps) {
		return nil, model.Bindingf("graph %s: failed to topologically sort: cycle detected", g.Name)
	}

	return sorted, nil
}

// Validate re-checks every binding of every step, including the bodies of
// embedded templates, against the producers declared in the graph.
func (g *Graph) Validate() error {
	if err := g.DetectCycles(); err != nil {
		return err
	}
	s := &scope{inputs: g.Inputs, index: make(map[string]*StepNode, len(g.steps))}
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	for _, n := range order {
		if err := s.check(n); err != nil {
			return err
		}
		s.steps = append(s.steps, n)
		s.index[n.Name] = n

		if body, ok := TemplateBody(n.Template); ok {
			if err := body.Validate(); err != nil {
				return fmt.Errorf("template step %s: %w", n.Name, err)
			}
		}
	}
	for name, bind := range g.Outputs {
		artifact := g.OutputPorts.HasArtifact(name)
		if err := s.checkBinding("outputs", name, bind, artifact); err != nil {
			return err
		}
	}
	return nil
}
