// Package graph builds and queries the dependency DAG of an action's
// tasks: cycle detection, topological ordering, and ready-set computation
// for the executor.
package graph

import (
	"github.com/google/uuid"
)

// Node is one task in the DAG, annotated with its resolved edges.
type Node struct {
	// ID is the task id this node represents.
	ID uuid.UUID

	// InDegree is the number of unresolved incoming edges (dependencies).
	InDegree int

	// DependsOn lists the nodes this node depends on.
	DependsOn []*Node

	// Dependents lists the nodes that depend on this node.
	Dependents []*Node
}

// DAG is the dependency graph of one action's tasks.
type DAG struct {
	// Nodes maps task id to its Node.
	Nodes map[uuid.UUID]*Node

	// RootNodes are nodes with no dependencies.
	RootNodes []*Node

	// Order is the topologically sorted node list from Kahn's algorithm:
	// root nodes in input order, then each node as soon as its last
	// dependency has been placed. Nodes released at the same time keep
	// the order in which they were discovered, not their input order.
	Order []*Node
}

// Input describes one task for Build: its id and the ids of the tasks it
// depends on.
type Input struct {
	ID           uuid.UUID
	Dependencies []uuid.UUID
}

// Build constructs a DAG from a flat task list, validating that every
// dependency resolves to another task in the same input set and that the
// resulting graph is acyclic. Root nodes keep their input order, which
// seeds the topological order; nodes after the roots follow Kahn's
// discovery order, which can differ from task creation order.
func Build(tasks []Input) (*DAG, error) {
	d := &DAG{Nodes: make(map[uuid.UUID]*Node, len(tasks))}

	for _, t := range tasks {
		if _, exists := d.Nodes[t.ID]; exists {
			return nil, NewValidationError(t.ID.String(), "id", "duplicate task id", ErrDuplicateNode)
		}
		d.Nodes[t.ID] = &Node{ID: t.ID}
	}

	for _, t := range tasks {
		node := d.Nodes[t.ID]
		for _, depID := range t.Dependencies {
			depNode, exists := d.Nodes[depID]
			if !exists {
				return nil, NewValidationError(t.ID.String(), "dependencies",
					"depends on unknown task", ErrMissingDependency)
			}
			d.addEdge(depNode, node)
		}
	}

	d.findRootNodes(tasks)

	order, err := d.topologicalSort()
	if err != nil {
		return nil, err
	}
	d.Order = order

	return d, nil
}

func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

func (d *DAG) findRootNodes(tasks []Input) {
	d.RootNodes = make([]*Node, 0)
	for _, t := range tasks {
		if node := d.Nodes[t.ID]; node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort runs Kahn's algorithm; a node count mismatch at the end
// means the graph contains a cycle.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[uuid.UUID]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// ReadyNodes returns the nodes whose dependencies are all in completed and
// which are themselves absent from both completed and running. Every other
// node counts as pending, so a failed node can be returned; callers that
// track failed tasks filter them out. Order follows d.Order, so admission is
// deterministic for a fixed graph and input order.
func (d *DAG) ReadyNodes(completed, running map[uuid.UUID]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Order {
		if completed[node.ID] || running[node.ID] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.ID] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	return ready
}

// Dependents returns the transitive set of nodes that depend on id,
// directly or indirectly — used by invalidation (§4.5) to compute the
// invalidation set.
func (d *DAG) Dependents(id uuid.UUID) []uuid.UUID {
	start, ok := d.Nodes[id]
	if !ok {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.Dependents {
			if !seen[dep.ID] {
				seen[dep.ID] = true
				walk(dep)
			}
		}
	}
	walk(start)

	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Ancestors returns the transitive set of nodes id depends on.
func (d *DAG) Ancestors(id uuid.UUID) []uuid.UUID {
	start, ok := d.Nodes[id]
	if !ok {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.DependsOn {
			if !seen[dep.ID] {
				seen[dep.ID] = true
				walk(dep)
			}
		}
	}
	walk(start)

	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Size returns the number of nodes in the DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsComplete reports whether completed contains every node.
func (d *DAG) IsComplete(completed map[uuid.UUID]bool) bool {
	for id := range d.Nodes {
		if !completed[id] {
			return false
		}
	}
	return true
}
