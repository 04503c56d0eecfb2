package loam

// ScenarioMetadata is the header of a scenario document: the frontmatter of a
// Markdown file, or the top-level keys of a JSON/YAML file. Nodes and edges
// keep the builder export shape and are decoded by the domain package.
type ScenarioMetadata struct {
	Key         string `json:"key" mapstructure:"key"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Nodes       []any  `json:"nodes" mapstructure:"nodes"`
	Edges       []any  `json:"edges" mapstructure:"edges"`
}
