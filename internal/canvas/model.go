// Package canvas persists named workflow graphs in a storage.Store and
// tracks which one the live graph belongs to.
package canvas

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Node and Edge are opaque objects owned by the graph editor.
type (
	Node = map[string]interface{}
	Edge = map[string]interface{}
)

// Graph is a workflow graph.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// IsEmpty reports whether the graph has neither nodes nor edges.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// Document is the persisted shape of a saved canvas.
type Document struct {
	FileName string `json:"fileName"`
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
}

// Graph returns the nodes and edges of the document.
func (d *Document) Graph() Graph {
	return Graph{Nodes: d.Nodes, Edges: d.Edges}
}

// Equal reports structural equality of two graphs. Both sides go through
// JSON first so that numbers and nested maps compare by value no matter
// which decoder produced them. A nil node or edge list equals an empty one.
func Equal(a, b Graph) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return cmp.Equal(na, nb, cmpopts.EquateEmpty())
}

func normalize(g Graph) (interface{}, error) {
	g = Graph{Nodes: nonNil(g.Nodes), Edges: nonNil(g.Edges)}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
