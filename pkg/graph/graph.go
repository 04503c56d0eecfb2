// Package graph implements the pure lookups over a scenario graph: the entry
// node, edge selection for a handle, and structural validation.
package graph

import (
	"fmt"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// Root returns the entry node: the first node, in declaration order, that is
// not the target of any edge. Editor group nodes are never chosen.
// It returns nil when no node qualifies.
func Root(nodes []domain.Node, edges []domain.Edge) *domain.Node {
	targets := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		targets[e.Target] = struct{}{}
	}
	for i := range nodes {
		if nodes[i].Type == domain.NodeTypeScenario {
			continue
		}
		if _, ok := targets[nodes[i].ID]; !ok {
			return &nodes[i]
		}
	}
	return nil
}

// Next selects the node reached from fromID for the given handle. Edges are
// tried in order:
//  1. the edge whose source handle equals handle (when handle is not empty)
//  2. the edge whose source handle is "default"
//  3. the first edge with no source handle
//
// It returns nil when nothing matches, which ends the run.
func Next(nodes []domain.Node, edges []domain.Edge, fromID, handle string) *domain.Node {
	if handle != "" {
		if n := Match(nodes, edges, fromID, handle); n != nil {
			return n
		}
	}
	if handle != domain.HandleDefault {
		if n := Match(nodes, edges, fromID, domain.HandleDefault); n != nil {
			return n
		}
	}
	for _, e := range edges {
		if e.Source == fromID && e.SourceHandle == "" {
			return find(nodes, e.Target)
		}
	}
	return nil
}

// Match returns the target of the edge leaving fromID with exactly handle,
// without any fallback.
func Match(nodes []domain.Node, edges []domain.Edge, fromID, handle string) *domain.Node {
	for _, e := range edges {
		if e.Source == fromID && e.SourceHandle == handle {
			return find(nodes, e.Target)
		}
	}
	return nil
}

func find(nodes []domain.Node, id string) *domain.Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

// Validate reports structural problems: duplicate ids, edges pointing at
// unknown nodes, unknown node types and a missing entry node.
func Validate(sc *domain.Scenario) error {
	var problems []string

	seen := make(map[string]bool, len(sc.Nodes))
	for _, n := range sc.Nodes {
		if seen[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
		if !n.Type.IsKnown() {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
	}

	for _, e := range sc.Edges {
		if !seen[e.Source] {
			problems = append(problems, fmt.Sprintf("edge %q has unknown source %q", e.ID, e.Source))
		}
		if !seen[e.Target] {
			problems = append(problems, fmt.Sprintf("edge %q has unknown target %q", e.ID, e.Target))
		}
	}

	if Root(sc.Nodes, sc.Edges) == nil {
		problems = append(problems, domain.ErrEmptyScenario.Error())
	}

	if len(problems) > 0 {
		return &domain.ValidationError{ScenarioKey: sc.Key, Problems: problems}
	}
	return nil
}
