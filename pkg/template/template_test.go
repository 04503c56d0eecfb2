package template_test

import (
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/template"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	slots := map[string]any{
		"name":  "Kim",
		"age":   float64(30),
		"ok":    true,
		"a":     map[string]any{"b": "x"},
		"items": []any{map[string]any{"name": "first"}, map[string]any{"name": "second"}},
		"user":  map[string]any{"tags": []string{"go", "redis"}},
		"empty": nil,
		"obj":   map[string]any{"k": 1},
		"이름":    "홍길동",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"simple", "Hi {{name}}!", "Hi Kim!"},
		{"whitespace inside braces", "Hi {{ name }}", "Hi Kim"},
		{"nested path", "{{a.b}}", "x"},
		{"number", "{{age}} years", "30 years"},
		{"bool", "{{ok}}", "true"},
		{"index", "{{items[1].name}}", "second"},
		{"dotted index", "{{items.0.name}}", "first"},
		{"quoted key", `{{a["b"]}}`, "x"},
		{"typed slice", "{{user.tags[1]}}", "redis"},
		{"null renders empty", "[{{empty}}]", "[]"},
		{"object renders json", "{{obj}}", `{"k":1}`},
		{"unicode identifiers", "{{이름}}님", "홍길동님"},
		{"missing kept verbatim", "Hi {{nobody}}", "Hi {{nobody}}"},
		{"index out of range kept", "{{items[5].name}}", "{{items[5].name}}"},
		{"malformed kept", "{{a..b}}", "{{a..b}}"},
		{"unterminated kept", "Hi {{name", "Hi {{name"},
		{"header projection", "{{header(items, name)}}", `["first","second"]`},
		{"header quoted field", `{{header(items, "name")}}`, `["first","second"]`},
		{"header on non-list kept", "{{header(a, b)}}", "{{header(a, b)}}"},
		{"mixed", "{{name}} has {{missing}} and {{a.b}}", "Kim has {{missing}} and x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, template.Resolve(tt.in, slots))
		})
	}
}

func TestResolve_NestedPlaceholders(t *testing.T) {
	slots := map[string]any{
		"greeting": "Hello {{name}}",
		"name":     "Lee",
	}
	assert.Equal(t, "Hello Lee!", template.Resolve("{{greeting}}!", slots))
}

func TestResolve_SelfReferenceTerminates(t *testing.T) {
	slots := map[string]any{"loop": "{{loop}}"}
	assert.Equal(t, "{{loop}}", template.Resolve("{{loop}}", slots))

	grow := map[string]any{"g": "x{{g}}"}
	assert.Equal(t, "xxx{{g}}", template.Resolve("{{g}}", grow))
}

func TestResolve_ChainBoundedByMaxPasses(t *testing.T) {
	slots := map[string]any{
		"a": "{{b}}",
		"b": "{{c}}",
		"c": "{{d}}",
		"d": "done",
	}
	assert.Equal(t, "{{d}}", template.Resolve("{{a}}", slots))
	assert.Equal(t, "done", template.Resolve("{{b}}", slots))
}

func TestLookup(t *testing.T) {
	root := map[string]any{
		"data": map[string]any{
			"users": []any{map[string]any{"id": float64(7)}},
		},
	}

	v, ok := template.Lookup(root, "data.users[0].id")
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)

	_, ok = template.Lookup(root, "data.missing")
	assert.False(t, ok)

	_, ok = template.Lookup(root, "data..users")
	assert.False(t, ok)
}
