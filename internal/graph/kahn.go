package graph

import (
	"container/list"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProcessingQueue holds the models ready for Kahn's algorithm (in-degree 0),
// kept in name order so the resulting load order is reproducible.
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// InitializeQueue creates a processing queue holding every node with
// in-degree 0.
func (g *Graph) InitializeQueue(inDegree map[string]int) *ProcessingQueue {
	pq := NewProcessingQueue()
	for _, name := range g.GetZeroInDegreeNodes(inDegree) {
		pq.Enqueue(name)
	}
	return pq
}

// Enqueue inserts a node at its sorted position.
func (pq *ProcessingQueue) Enqueue(node string) {
	for e := pq.queue.Front(); e != nil; e = e.Next() {
		if node < e.Value.(string) {
			pq.queue.InsertBefore(node, e)
			return
		}
	}
	pq.queue.PushBack(node)
}

// Dequeue removes and returns the smallest queued node.
// Returns empty string and false if queue is empty.
func (pq *ProcessingQueue) Dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

// Len returns the number of nodes in the queue.
func (pq *ProcessingQueue) Len() int {
	return pq.queue.Len()
}

// IsEmpty returns true if the queue has no nodes.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees counts, for every model, the distinct models it references.
func (g *Graph) CalculateInDegrees() map[string]int {
	inDegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// GetZeroInDegreeNodes returns the nodes with in-degree 0, sorted.
func (g *Graph) GetZeroInDegreeNodes(inDegree map[string]int) []string {
	var nodes []string
	for name, degree := range inDegree {
		if degree == 0 {
			nodes = append(nodes, name)
		}
	}
	sort.Strings(nodes)
	return nodes
}

// ErrCycleDetected is matched by every *CycleError.
var ErrCycleDetected = errors.New("cycle detected in dependency graph")

// CycleInfo describes what Kahn's algorithm could not order.
type CycleInfo struct {
	TotalNodes        int      // Total number of nodes in the graph
	ProcessedNodes    int      // Number of nodes successfully ordered
	UnprocessedNodes  []string // Nodes in or behind a cycle
	CycleParticipants []string // Nodes actually on a cycle (subset of UnprocessedNodes)
	CyclePath         []string // One cycle, e.g. [A, B, A]
}

// CycleError reports a cyclic dependency between models.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in dependency graph: %d of %d models could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nModels in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}
	if blocked := e.Info.Blocked(); len(blocked) > 0 {
		msg += fmt.Sprintf("\nModels blocked by cycle: %s", strings.Join(blocked, ", "))
	}
	return msg
}

// Is lets errors.Is match ErrCycleDetected.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// Blocked returns the unprocessed nodes that are not on a cycle themselves.
func (ci *CycleInfo) Blocked() []string {
	onCycle := make(map[string]bool, len(ci.CycleParticipants))
	for _, p := range ci.CycleParticipants {
		onCycle[p] = true
	}
	var blocked []string
	for _, u := range ci.UnprocessedNodes {
		if !onCycle[u] {
			blocked = append(blocked, u)
		}
	}
	return blocked
}

// kahn runs Kahn's algorithm and returns the ordered nodes and the set of
// nodes it reached.
func (g *Graph) kahn() ([]string, map[string]bool) {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	var order []string
	processed := make(map[string]bool, len(g.Nodes))
	for !queue.IsEmpty() {
		node, _ := queue.Dequeue()
		order = append(order, node)
		processed[node] = true

		for _, child := range g.GetChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}
	return order, processed
}

// DetectIncompleteProcessing returns nil when every node can be ordered,
// otherwise what was left over.
func (g *Graph) DetectIncompleteProcessing() *CycleInfo {
	_, processed := g.kahn()
	if len(processed) == len(g.Nodes) {
		return nil
	}

	unprocessedSet := make(map[string]bool)
	var unprocessed []string
	for _, name := range g.AllNodes() {
		if !processed[name] {
			unprocessed = append(unprocessed, name)
			unprocessedSet[name] = true
		}
	}

	var participants []string
	for _, node := range unprocessed {
		if g.canReachSelf(node, unprocessedSet) {
			participants = append(participants, node)
		}
	}

	var path []string
	if len(participants) > 0 {
		path = g.FindCyclePath(participants[0], unprocessedSet)
	}

	return &CycleInfo{
		TotalNodes:        len(g.Nodes),
		ProcessedNodes:    len(processed),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

// HasCycle returns true if the dependency graph contains a cycle.
func (g *Graph) HasCycle() bool {
	return g.DetectIncompleteProcessing() != nil
}

// FindCyclePath returns one cycle through start within allowedNodes, with
// start at both ends, or nil.
func (g *Graph) FindCyclePath(start string, allowedNodes map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if g.dfsFindPath(start, start, visited, allowedNodes, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target string, visited, allowedNodes map[string]bool, path *[]string) bool {
	for _, child := range g.GetChildren(current) {
		if !allowedNodes[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}

		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowedNodes, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

// canReachSelf checks whether start lies on a cycle inside allowedNodes.
func (g *Graph) canReachSelf(start string, allowedNodes map[string]bool) bool {
	visited := make(map[string]bool)
	return g.dfsCanReach(start, start, visited, allowedNodes, true)
}

func (g *Graph) dfsCanReach(current, target string, visited, allowedNodes map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowedNodes[current] {
		return false
	}
	visited[current] = true
	for _, child := range g.GetChildren(current) {
		if g.dfsCanReach(child, target, visited, allowedNodes, false) {
			return true
		}
	}
	return false
}

// TopologicalSort returns models parent-first. Ties are broken by name.
// Returns a *CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	order, processed := g.kahn()
	if len(processed) != len(g.Nodes) {
		return nil, &CycleError{Info: g.DetectIncompleteProcessing()}
	}
	return order, nil
}

// LoadOrder returns the order in which models are loaded.
func (g *Graph) LoadOrder() ([]string, error) {
	return g.TopologicalSort()
}

// LoadOrderWithFallback always returns every model: the orderable ones
// parent-first, then the cyclic remainder by name. The error is the
// *CycleError when a remainder exists; loading in that order needs foreign
// key checks disabled.
func (g *Graph) LoadOrderWithFallback() ([]string, error) {
	order, processed := g.kahn()
	if len(processed) == len(g.Nodes) {
		return order, nil
	}
	for _, name := range g.AllNodes() {
		if !processed[name] {
			order = append(order, name)
		}
	}
	return order, &CycleError{Info: g.DetectIncompleteProcessing()}
}

// Validate returns a *CycleError if the graph cannot be ordered.
func (g *Graph) Validate() error {
	if info := g.DetectIncompleteProcessing(); info != nil {
		return &CycleError{Info: info}
	}
	return nil
}
