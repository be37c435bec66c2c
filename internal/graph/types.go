// Package graph provides the model dependency graph used to order fixture
// loads: a model must be inserted after every model its foreign keys point at.
package graph

import "sort"

// Node represents a model in the dependency graph.
type Node struct {
	Name       string // Logical type, "app.model"
	Table      string // Storage table
	PrimaryKey string // PK column
}

// Edge represents a dependency: To holds a foreign key pointing at From.
type Edge struct {
	From string // Referenced (parent) model
	To   string // Referencing (child) model
}

// EdgeMeta describes one foreign key behind an edge.
type EdgeMeta struct {
	Attribute string // FK attribute on the child
	Column    string // FK column on the child
}

// Graph is the dependency structure of a set of models.
type Graph struct {
	Nodes        map[string]*Node    // model -> node
	Children     map[string][]string // model -> referencing models (outgoing edges)
	Parents      map[string][]string // model -> referenced models (incoming edges)
	selfRefs     map[string][]EdgeMeta
	edgeMetadata map[Edge][]EdgeMeta
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:        make(map[string]*Node),
		Children:     make(map[string][]string),
		Parents:      make(map[string][]string),
		selfRefs:     make(map[string][]EdgeMeta),
		edgeMetadata: make(map[Edge][]EdgeMeta),
	}
}

// AddNode adds a model node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes[name] = node
}

// AddEdge adds a parent -> child dependency. Several foreign keys between
// the same pair of models produce one edge.
func (g *Graph) AddEdge(parent, child string) {
	if g.HasEdge(parent, child) {
		return
	}
	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// AddEdgeWithMeta adds an edge and records the foreign key behind it. A
// foreign key from a model to itself is recorded as a self reference and
// adds no edge.
func (g *Graph) AddEdgeWithMeta(parent, child string, meta EdgeMeta) {
	if parent == child {
		g.selfRefs[child] = append(g.selfRefs[child], meta)
		return
	}
	g.AddEdge(parent, child)
	edge := Edge{From: parent, To: child}
	g.edgeMetadata[edge] = append(g.edgeMetadata[edge], meta)
}

// HasEdge reports whether parent -> child exists.
func (g *Graph) HasEdge(parent, child string) bool {
	for _, c := range g.Children[parent] {
		if c == child {
			return true
		}
	}
	return false
}

// GetChildren returns the models referencing parent.
func (g *Graph) GetChildren(parent string) []string {
	return g.Children[parent]
}

// GetParents returns the models child references.
func (g *Graph) GetParents(child string) []string {
	return g.Parents[child]
}

// GetNode returns the node for a model, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// GetEdgeMeta returns the foreign keys behind an edge.
func (g *Graph) GetEdgeMeta(parent, child string) []EdgeMeta {
	return g.edgeMetadata[Edge{From: parent, To: child}]
}

// SelfReferences returns the foreign keys of a model pointing at itself.
// Rows of such a model may need foreign key checks disabled to load.
func (g *Graph) SelfReferences(name string) []EdgeMeta {
	return g.selfRefs[name]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.Children {
		count += len(children)
	}
	return count
}

// AllNodes returns every model name, sorted.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// AllEdges returns every edge, sorted by parent then child.
func (g *Graph) AllEdges() []Edge {
	var edges []Edge
	for parent, children := range g.Children {
		for _, child := range children {
			edges = append(edges, Edge{From: parent, To: child})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// LeafNodes returns the models nothing references, sorted.
func (g *Graph) LeafNodes() []string {
	var leaves []string
	for name := range g.Nodes {
		if len(g.Children[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// InDegree returns the number of models a node references.
func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}

// OutDegree returns the number of models referencing a node.
func (g *Graph) OutDegree(name string) int {
	return len(g.Children[name])
}

// GetPK returns the primary key column of a model, "id" if unknown.
func (g *Graph) GetPK(name string) string {
	if n, ok := g.Nodes[name]; ok && n.PrimaryKey != "" {
		return n.PrimaryKey
	}
	return "id"
}
