// Package graph provides dependency ordering for named declarations.
//
// Nodes are registered in declaration order and may depend on other nodes.
// Sort returns an order in which every dependency precedes its dependents,
// breaking ties by registration order so the result is deterministic.
package graph

import (
	"fmt"
	"strings"
)

// Graph is a directed dependency graph. It is not safe for concurrent
// mutation; reads after construction are safe.
type Graph struct {
	index map[string]int
	nodes []string
	deps  [][]string
}

// MissingError reports a dependency on a node that was never added.
type MissingError struct {
	Node string
	Dep  string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s depends on unknown %s", e.Node, e.Dep)
}

// CycleError reports a dependency cycle. Cycle lists the nodes in edge order
// and repeats the first node at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// New creates an empty graph
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode registers name. It reports false if name already exists.
func (g *Graph) AddNode(name string) bool {
	if _, ok := g.index[name]; ok {
		return false
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
	g.deps = append(g.deps, nil)
	return true
}

// AddDependency records that node depends on dep. node must exist; dep is
// resolved during Sort so declarations may be added in any order.
func (g *Graph) AddDependency(node, dep string) {
	i, ok := g.index[node]
	if !ok {
		i = len(g.nodes)
		g.AddNode(node)
	}
	g.deps[i] = append(g.deps[i], dep)
}

// Has reports whether name is a registered node.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return append([]string(nil), g.deps[i]...)
}

// Sort returns all nodes with dependencies first. It fails with
// *MissingError or *CycleError.
func (g *Graph) Sort() ([]string, error) {
	for i, deps := range g.deps {
		for _, d := range deps {
			if !g.Has(d) {
				return nil, &MissingError{Node: g.nodes[i], Dep: d}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var stack []int

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return g.cycleFrom(stack, i)
		}
		state[i] = visiting
		stack = append(stack, i)
		for _, d := range g.deps[i] {
			if err := visit(g.index[d]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		order = append(order, g.nodes[i])
		return nil
	}

	for i := range g.nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (g *Graph) cycleFrom(stack []int, start int) *CycleError {
	var cycle []string
	for j := len(stack) - 1; j >= 0; j-- {
		if stack[j] == start {
			for _, k := range stack[j:] {
				cycle = append(cycle, g.nodes[k])
			}
			break
		}
	}
	cycle = append(cycle, g.nodes[start])
	return &CycleError{Cycle: cycle}
}
