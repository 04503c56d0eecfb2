package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState marks the nodes that produced transcript steps and the
// current node of st.
func OverlayFromState(st *domain.RunState) *GraphOverlay {
	if st == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentNode: st.CurrentNodeID}
	for _, step := range st.Steps {
		if id := stepNodeID(step.ID); id != "" {
			overlay.VisitedNodes = append(overlay.VisitedNodes, id)
		}
	}
	return overlay
}

// stepNodeID recovers the node id from "prompt:<node>" and "<node>#<n>" ids.
func stepNodeID(stepID string) string {
	if id, ok := strings.CutPrefix(stepID, domain.PromptStepPrefix); ok {
		return id
	}
	if i := strings.LastIndexByte(stepID, '#'); i > 0 {
		return stepID[:i]
	}
	return ""
}

// GenerateMermaid produces a Mermaid flowchart of a scenario.
// Shapes follow the node role:
// - Root: ((Circle))
// - Automatic (api, llm, setSlot, delay): [[Subroutine]]
// - Input (branch, slotfilling, form): [/Parallelogram/]
// - Default: [Rectangle]
// Group nodes become subgraphs. Edge labels are the source handles.
func GenerateMermaid(sc *domain.Scenario, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if sc == nil {
		return sb.String()
	}

	rootID := ""
	if root := graph.Root(sc.Nodes, sc.Edges); root != nil {
		rootID = root.ID
	}

	children := make(map[string][]domain.Node)
	groups := make(map[string]domain.Node)
	for _, node := range sc.Nodes {
		if node.Type == domain.NodeTypeScenario {
			groups[node.ID] = node
			continue
		}
		children[node.ParentID] = append(children[node.ParentID], node)
	}

	for _, node := range children[""] {
		writeNode(&sb, node, rootID, "    ")
	}
	groupIDs := make([]string, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)
	for _, id := range groupIDs {
		label := id
		if d, ok := groups[id].Data.(domain.GroupData); ok && d.Label != "" {
			label = d.Label
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID(id), escapeLabel(label))
		for _, node := range children[id] {
			writeNode(&sb, node, rootID, "        ")
		}
		sb.WriteString("    end\n")
	}
	// Children of unknown groups are still drawn.
	for parent, nodes := range children {
		if _, ok := groups[parent]; parent == "" || ok {
			continue
		}
		for _, node := range nodes {
			writeNode(&sb, node, rootID, "    ")
		}
	}

	for _, e := range sc.Edges {
		from, to := sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)
		switch e.SourceHandle {
		case "", domain.HandleDefault:
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
		case domain.HandleOnFail:
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, e.SourceHandle, to)
		default:
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escapeLabel(e.SourceHandle), to)
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			if _, ok := sc.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, node domain.Node, rootID, indent string) {
	opener, closer := "[", "]"
	switch {
	case node.ID == rootID:
		opener, closer = "((", "))"
	case node.Type == domain.NodeTypeAPI, node.Type == domain.NodeTypeLLM,
		node.Type == domain.NodeTypeSetSlot, node.Type == domain.NodeTypeDelay:
		opener, closer = "[[", "]]"
	case node.Type == domain.NodeTypeBranch, node.Type == domain.NodeTypeSlotFilling,
		node.Type == domain.NodeTypeForm:
		opener, closer = "[/", "/]"
	}

	label := node.ID
	if text := node.Content(); text != "" {
		label = fmt.Sprintf("%s <br/> %s", node.ID, truncate(text, 40))
	}
	fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, sanitizeMermaidID(node.ID), opener, escapeLabel(label), closer)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
