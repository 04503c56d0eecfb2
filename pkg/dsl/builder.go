package dsl

import (
	"fmt"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
)

// Builder manages the graph construction.
type Builder struct {
	key   string
	title string
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder for the scenario key.
func New(key string) *Builder {
	return &Builder{
		key:   key,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Title sets the scenario title.
func (b *Builder) Title(title string) *Builder {
	b.title = title
	return b
}

// Add creates a node of the given type and payload. If the node already
// exists, its type and payload are replaced and the existing builder is
// returned.
func (b *Builder) Add(id string, data domain.NodeData) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		nb.node.Type = data.Kind()
		nb.node.Data = data
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Type: data.Kind(), Data: data},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

func (b *Builder) Message(id, content string) *NodeBuilder {
	return b.Add(id, domain.MessageData{Content: content})
}

func (b *Builder) Branch(id, content string, replies ...domain.Reply) *NodeBuilder {
	return b.Add(id, domain.BranchData{Content: content, Replies: replies})
}

// SlotFilling asks content and stores the answer in slot.
func (b *Builder) SlotFilling(id, content, slot string, replies ...domain.Reply) *NodeBuilder {
	return b.Add(id, domain.SlotFillingData{Content: content, Slot: slot, Replies: replies})
}

func (b *Builder) Form(id, title string, elements ...domain.FormElement) *NodeBuilder {
	return b.Add(id, domain.FormData{Title: title, Elements: elements})
}

func (b *Builder) API(id string, data domain.APIData) *NodeBuilder {
	return b.Add(id, data)
}

// LLM generates from prompt into outputVar (llm_output when empty).
func (b *Builder) LLM(id, prompt, outputVar string) *NodeBuilder {
	return b.Add(id, domain.LLMData{Prompt: prompt, OutputVar: outputVar})
}

// SetSlot assigns literal values, using the {key, value} shorthand.
func (b *Builder) SetSlot(id string, values map[string]any) *NodeBuilder {
	data := domain.SetSlotData{}
	for _, k := range sortedKeys(values) {
		data.Assignments = append(data.Assignments, domain.Assignment{Key: k, Value: values[k]})
	}
	return b.Add(id, data)
}

// Delay pauses for ms milliseconds.
func (b *Builder) Delay(id string, ms int64) *NodeBuilder {
	return b.Add(id, domain.DelayData{Duration: &ms})
}

func (b *Builder) Link(id, content, url string) *NodeBuilder {
	return b.Add(id, domain.LinkData{Content: content, URL: url})
}

func (b *Builder) Toast(id, content string) *NodeBuilder {
	return b.Add(id, domain.ToastData{Content: content})
}

// Group declares an editor group. Nodes join it with In.
func (b *Builder) Group(id, label string) *NodeBuilder {
	return b.Add(id, domain.GroupData{Label: label})
}

func (b *Builder) edge(source, target, handle string) {
	b.edges = append(b.edges, domain.Edge{
		ID:           fmt.Sprintf("e%d", len(b.edges)+1),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	})
}

// Build assembles and validates the scenario.
func (b *Builder) Build() (*domain.Scenario, error) {
	sc := &domain.Scenario{
		Key:   b.key,
		Title: b.title,
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: append([]domain.Edge(nil), b.edges...),
	}
	for _, id := range b.order {
		sc.Nodes = append(sc.Nodes, b.nodes[id].node)
	}
	if err := graph.Validate(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Loader compiles the graph into a memory loader holding this scenario.
func (b *Builder) Loader() (*memory.Loader, error) {
	sc, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return memory.NewLoader(sc), nil
}
