package domain

import "fmt"

// Handle names with engine-defined meaning.
const (
	HandleDefault   = "default"
	HandleOnSuccess = "onSuccess"
	HandleOnFail    = "onFail"
)

// Edge is a directed connection between two nodes. SourceHandle is matched
// against an outcome name or the value a user selected.
type Edge struct {
	ID           string `json:"id" yaml:"id" mapstructure:"id"`
	Source       string `json:"source" yaml:"source" mapstructure:"source"`
	Target       string `json:"target" yaml:"target" mapstructure:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty" mapstructure:"sourceHandle"`
}

// Scenario is one conversation graph. It is read-only once loaded.
type Scenario struct {
	Key   string `json:"key,omitempty"`
	Title string `json:"title,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// DecodeScenario builds a Scenario from a generic map with "nodes" and "edges"
// lists, as produced by YAML documents or loosely typed stores.
func DecodeScenario(key string, raw map[string]any) (*Scenario, error) {
	sc := &Scenario{Key: key}
	if t, ok := raw["title"].(string); ok {
		sc.Title = t
	}

	rawNodes, _ := raw["nodes"].([]any)
	for i, rn := range rawNodes {
		m, ok := rn.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nodes[%d]: expected object, got %T", i, rn)
		}
		n, err := DecodeNode(m)
		if err != nil {
			return nil, err
		}
		sc.Nodes = append(sc.Nodes, n)
	}

	rawEdges, _ := raw["edges"].([]any)
	for i, re := range rawEdges {
		m, ok := re.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("edges[%d]: expected object, got %T", i, re)
		}
		e := Edge{}
		e.ID, _ = m["id"].(string)
		e.Source, _ = m["source"].(string)
		e.Target, _ = m["target"].(string)
		e.SourceHandle, _ = m["sourceHandle"].(string)
		sc.Edges = append(sc.Edges, e)
	}
	return sc, nil
}

// Node returns the node with the given id.
func (s *Scenario) Node(id string) (*Node, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}
