package dsl

import (
	"sort"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// NodeBuilder provides a fluent API for wiring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Go adds an unlabeled edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.edge(n.node.ID, target, "")
	return n
}

// On adds an edge taken for the given source handle, such as a reply value.
func (n *NodeBuilder) On(handle, target string) *NodeBuilder {
	n.builder.edge(n.node.ID, target, handle)
	return n
}

// Default adds the fallback edge of a branch.
func (n *NodeBuilder) Default(target string) *NodeBuilder {
	return n.On(domain.HandleDefault, target)
}

// OnSuccess and OnFail route api nodes.
func (n *NodeBuilder) OnSuccess(target string) *NodeBuilder {
	return n.On(domain.HandleOnSuccess, target)
}

func (n *NodeBuilder) OnFail(target string) *NodeBuilder {
	return n.On(domain.HandleOnFail, target)
}

// In places the node inside a group.
func (n *NodeBuilder) In(group string) *NodeBuilder {
	n.node.ParentID = group
	return n
}

// SlotKey stores the submitted fields of a form node under key.
func (n *NodeBuilder) SlotKey(key string) *NodeBuilder {
	if d, ok := n.node.Data.(domain.FormData); ok {
		d.SlotKey = key
		n.node.Data = d
	}
	return n
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
