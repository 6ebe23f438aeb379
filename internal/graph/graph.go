// Package graph provides a small executor for fixed, acyclic flows of stage functions.
// Each node consumes the current state and returns a patch that is merged into it.
package graph

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	// START is the implicit entry node of every graph
	START = "__start__"
	// END is the implicit exit node of every graph
	END = "__end__"
)

// NodeFunc is a stage function. It must not mutate state; it returns only the fields it changes.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// MergeFunc merges a node patch into the accumulated state
type MergeFunc[S any] func(base, patch S) S

// NodeHook observes every node execution
type NodeHook func(flow, node string, elapsed time.Duration, err error)

// NodeError wraps the error of the node that abandoned a run
type NodeError struct {
	Flow string
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("flow %s: node %s failed: %v", e.Flow, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Graph is a mutable flow definition. Call Compile to obtain a runnable, immutable flow.
type Graph[S any] struct {
	name  string
	nodes map[string]NodeFunc[S]
	order []string
	edges map[string][]string
	merge MergeFunc[S]
	hook  NodeHook
	err   error
}

// New creates an empty graph whose node patches are combined with merge
func New[S any](name string, merge MergeFunc[S]) *Graph[S] {
	return &Graph[S]{
		name:  name,
		nodes: make(map[string]NodeFunc[S]),
		edges: make(map[string][]string),
		merge: merge,
	}
}

// AddNode registers a node. The first invalid registration is reported by Compile.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	switch {
	case g.err != nil:
	case name == "" || name == START || name == END:
		g.err = fmt.Errorf("invalid node name %q", name)
	case fn == nil:
		g.err = fmt.Errorf("node %s has no function", name)
	default:
		if _, exists := g.nodes[name]; exists {
			g.err = fmt.Errorf("duplicate node %s", name)
			break
		}
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge declares that to runs after from
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = append(g.edges[from], to)
	return g
}

// OnNode installs a hook called after every node execution
func (g *Graph[S]) OnNode(hook NodeHook) *Graph[S] {
	g.hook = hook
	return g
}

// Compile validates the topology and freezes it.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.err != nil {
		return nil, fmt.Errorf("flow %s: %w", g.name, g.err)
	}
	if g.merge == nil {
		return nil, fmt.Errorf("flow %s: no merge function", g.name)
	}

	known := func(n string) bool {
		_, ok := g.nodes[n]
		return ok
	}

	indegree := make(map[string]int, len(g.nodes)+1)
	preds := make(map[string][]string, len(g.nodes))
	for _, n := range g.order {
		indegree[n] = 0
	}
	indegree[END] = 0

	for from, tos := range g.edges {
		if from == END || (from != START && !known(from)) {
			return nil, fmt.Errorf("flow %s: edge from unknown node %s", g.name, from)
		}
		for _, to := range tos {
			if to == START || (to != END && !known(to)) {
				return nil, fmt.Errorf("flow %s: edge to unknown node %s", g.name, to)
			}
			if from == to {
				return nil, fmt.Errorf("flow %s: self-loop on %s", g.name, from)
			}
			indegree[to]++
			preds[to] = append(preds[to], from)
		}
	}

	if err := g.checkReachability(); err != nil {
		return nil, err
	}

	// Kahn's algorithm; ties are broken by registration order for a deterministic schedule.
	rank := make(map[string]int, len(g.order))
	for i, n := range g.order {
		rank[n] = i
	}
	var ready []string
	for _, to := range g.edges[START] {
		if to != END {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	schedule := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return rank[ready[i]] < rank[ready[j]] })
		n := ready[0]
		ready = ready[1:]
		schedule = append(schedule, n)
		for _, to := range g.edges[n] {
			if to == END {
				continue
			}
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}
	if len(schedule) != len(g.order) {
		return nil, fmt.Errorf("flow %s: cycle detected", g.name)
	}

	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	predsCopy := make(map[string][]string, len(preds))
	for k, v := range preds {
		predsCopy[k] = append([]string(nil), v...)
	}

	return &Runnable[S]{
		name:     g.name,
		schedule: schedule,
		preds:    predsCopy,
		nodes:    nodes,
		merge:    g.merge,
		hook:     g.hook,
	}, nil
}

// checkReachability requires every node to be reachable from START and able to reach END.
func (g *Graph[S]) checkReachability() error {
	forward := reach(START, func(n string) []string { return g.edges[n] })
	if !forward[END] {
		return fmt.Errorf("flow %s: END is not reachable from START", g.name)
	}

	reverse := make(map[string][]string)
	for from, tos := range g.edges {
		for _, to := range tos {
			reverse[to] = append(reverse[to], from)
		}
	}
	backward := reach(END, func(n string) []string { return reverse[n] })

	for _, n := range g.order {
		if !forward[n] {
			return fmt.Errorf("flow %s: node %s is not reachable from START", g.name, n)
		}
		if !backward[n] {
			return fmt.Errorf("flow %s: node %s has no path to END", g.name, n)
		}
	}
	return nil
}

func reach(from string, next func(string) []string) map[string]bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range next(n) {
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
			}
		}
	}
	return seen
}

// Runnable is a compiled, immutable flow
type Runnable[S any] struct {
	name     string
	schedule []string
	preds    map[string][]string
	nodes    map[string]NodeFunc[S]
	merge    MergeFunc[S]
	hook     NodeHook
}

// Name returns the flow name
func (r *Runnable[S]) Name() string {
	return r.name
}

// Schedule returns the node execution order
func (r *Runnable[S]) Schedule() []string {
	return append([]string(nil), r.schedule...)
}

// Predecessors returns the declared predecessors of a node
func (r *Runnable[S]) Predecessors(node string) []string {
	return append([]string(nil), r.preds[node]...)
}

// Run executes the flow against initial. Nodes run one at a time in schedule order, so every
// node starts only after all of its predecessors have merged their patches. The first node error
// abandons the run; the state merged so far is returned alongside a *NodeError.
func (r *Runnable[S]) Run(ctx context.Context, initial S) (S, error) {
	state := initial
	for _, name := range r.schedule {
		if err := ctx.Err(); err != nil {
			return state, &NodeError{Flow: r.name, Node: name, Err: err}
		}

		start := time.Now()
		patch, err := r.nodes[name](ctx, state)
		if r.hook != nil {
			r.hook(r.name, name, time.Since(start), err)
		}
		if err != nil {
			return state, &NodeError{Flow: r.name, Node: name, Err: err}
		}
		state = r.merge(state, patch)
	}
	return state, nil
}
