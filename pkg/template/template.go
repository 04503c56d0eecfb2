// Package template resolves {{ expr }} placeholders against slot values.
//
// Grammar:
//
//	text    := { literal | "{{" expr "}}" }
//	expr    := call | path
//	call    := "header" "(" path "," path ")"
//	path    := segment { "." ident | "[" index "]" }
//	segment := ident | "[" index "]"
//	index   := integer | quoted-string
//
// A placeholder whose path does not resolve, or that does not parse, is kept
// verbatim. Resolution runs up to MaxPasses times so slot values that contain
// placeholders are expanded too.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxPasses bounds repeated resolution of self-referencing slots.
const MaxPasses = 3

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Resolve substitutes every placeholder in text using slots.
func Resolve(text string, slots map[string]any) string {
	if !strings.Contains(text, openDelim) {
		return text
	}
	out := text
	for i := 0; i < MaxPasses; i++ {
		next := resolveOnce(out, slots)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// Lookup evaluates a path expression (e.g. "items[0].name") against root.
func Lookup(root any, path string) (any, bool) {
	p := &parser{src: path}
	segs, err := p.parsePath()
	if err != nil || !p.done() {
		return nil, false
	}
	return walk(root, segs)
}

func resolveOnce(text string, slots map[string]any) string {
	var sb strings.Builder
	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			sb.WriteString(rest)
			break
		}
		end += start + len(openDelim)

		sb.WriteString(rest[:start])
		raw := rest[start : end+len(closeDelim)]
		if v, ok := evaluate(rest[start+len(openDelim):end], slots); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(raw)
		}
		rest = rest[end+len(closeDelim):]
	}
	return sb.String()
}

func evaluate(src string, slots map[string]any) (string, bool) {
	p := &parser{src: src}
	ex, err := p.parseExpr()
	if err != nil {
		return "", false
	}

	switch e := ex.(type) {
	case pathExpr:
		v, ok := walk(slots, e.segments)
		if !ok {
			return "", false
		}
		return format(v), true

	case headerExpr:
		arr, ok := walk(slots, e.array)
		if !ok {
			return "", false
		}
		items, ok := asList(arr)
		if !ok {
			return "", false
		}
		projected := make([]any, 0, len(items))
		for _, item := range items {
			v, _ := walk(item, e.field)
			projected = append(projected, v)
		}
		b, err := json.Marshal(projected)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	return "", false
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case float32, float64:
		return fmt.Sprint(val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
