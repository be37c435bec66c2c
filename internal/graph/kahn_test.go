package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func chain(names ...string) *Graph {
	g := NewGraph()
	for _, n := range names {
		g.AddNode(n, nil)
	}
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	return g
}

func TestProcessingQueue_SortedOrder(t *testing.T) {
	pq := NewProcessingQueue()
	for _, n := range []string{"c", "a", "b"} {
		pq.Enqueue(n)
	}
	if pq.Len() != 3 {
		t.Fatalf("Expected 3 queued, got %d", pq.Len())
	}

	var got []string
	for !pq.IsEmpty() {
		n, _ := pq.Dequeue()
		got = append(got, n)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Dequeue order = %v", got)
	}
	if _, ok := pq.Dequeue(); ok {
		t.Error("Expected empty queue")
	}
}

func TestCalculateInDegrees(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"artist", "label", "album", "song"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("artist", "album")
	g.AddEdge("label", "album")
	g.AddEdge("album", "song")

	in := g.CalculateInDegrees()
	want := map[string]int{"artist": 0, "label": 0, "album": 2, "song": 1}
	if !reflect.DeepEqual(in, want) {
		t.Errorf("In-degrees = %v, want %v", in, want)
	}
	if got := g.GetZeroInDegreeNodes(in); !reflect.DeepEqual(got, []string{"artist", "label"}) {
		t.Errorf("Zero in-degree nodes = %v", got)
	}
}

func TestTopologicalSort_ParentsFirstDeterministic(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"song", "album", "label", "artist"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("artist", "album")
	g.AddEdge("label", "album")
	g.AddEdge("album", "song")

	for i := 0; i < 5; i++ {
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}
		want := []string{"artist", "label", "album", "song"}
		if !reflect.DeepEqual(order, want) {
			t.Fatalf("Order = %v, want %v", order, want)
		}
	}
}

func TestLoadOrder_Chain(t *testing.T) {
	order, err := chain("a", "b", "c").LoadOrder()
	if err != nil {
		t.Fatalf("LoadOrder failed: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("Order = %v", order)
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	g := chain("a", "b", "c")
	g.AddEdge("c", "a")
	g.AddNode("d", nil)
	g.AddEdge("c", "d")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Expected CycleError, got %v", err)
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Error("CycleError must match ErrCycleDetected")
	}

	info := cycleErr.Info
	if info.TotalNodes != 4 || info.ProcessedNodes != 0 {
		t.Errorf("Unexpected counts: %+v", info)
	}
	if !reflect.DeepEqual(info.CycleParticipants, []string{"a", "b", "c"}) {
		t.Errorf("Participants = %v", info.CycleParticipants)
	}
	if !reflect.DeepEqual(info.Blocked(), []string{"d"}) {
		t.Errorf("Blocked = %v", info.Blocked())
	}
	if !reflect.DeepEqual(info.CyclePath, []string{"a", "b", "c", "a"}) {
		t.Errorf("Cycle path = %v", info.CyclePath)
	}

	msg := err.Error()
	for _, want := range []string{"a -> b -> c -> a", "Models in cycle: a, b, c", "Models blocked by cycle: d"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message %q missing %q", msg, want)
		}
	}
}

func TestLoadOrderWithFallback(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"root", "x", "y"} {
		g.AddNode(n, nil)
	}
	g.AddEdge("root", "x")
	g.AddEdge("x", "y")
	g.AddEdge("y", "x")

	order, err := g.LoadOrderWithFallback()
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Expected cycle error, got %v", err)
	}
	if !reflect.DeepEqual(order, []string{"root", "x", "y"}) {
		t.Errorf("Order = %v", order)
	}

	order, err = chain("a", "b").LoadOrderWithFallback()
	if err != nil || !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("Acyclic fallback order = %v, err = %v", order, err)
	}
}

func TestValidate(t *testing.T) {
	if err := chain("a", "b").Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	g := chain("a", "b")
	g.AddEdge("b", "a")
	if err := g.Validate(); err == nil {
		t.Error("Expected cycle error")
	}
	if !g.HasCycle() {
		t.Error("HasCycle must report the cycle")
	}
}

func TestGraph_Accessors(t *testing.T) {
	g := chain("a", "b", "c")
	g.AddEdge("a", "b")

	if g.EdgeCount() != 2 {
		t.Errorf("Duplicate edge must be ignored, got %d edges", g.EdgeCount())
	}
	if !g.HasEdge("a", "b") || g.HasEdge("b", "a") {
		t.Error("HasEdge mismatch")
	}
	if !reflect.DeepEqual(g.LeafNodes(), []string{"c"}) {
		t.Errorf("Leaves = %v", g.LeafNodes())
	}
	if g.OutDegree("a") != 1 || g.InDegree("c") != 1 {
		t.Error("Degree mismatch")
	}
	if !reflect.DeepEqual(g.GetParents("b"), []string{"a"}) || !reflect.DeepEqual(g.GetChildren("b"), []string{"c"}) {
		t.Error("Parent/child mismatch")
	}
	if g.GetNode("a").Name != "a" || g.HasNode("z") {
		t.Error("Node lookup mismatch")
	}
}
