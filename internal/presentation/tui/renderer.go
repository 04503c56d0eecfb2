package tui

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns bot text into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a function that renders markdown using glamour.
// It falls back to plain text when the renderer cannot be built.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return PlainRenderer
	}
	return r.Render
}

// PlainRenderer returns text unchanged.
func PlainRenderer(text string) (string, error) {
	return text, nil
}
