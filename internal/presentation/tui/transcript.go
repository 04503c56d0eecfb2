package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/muesli/termenv"
)

// Printer writes transcript steps to a terminal, colouring them by role.
// It remembers what it already printed so repeated calls only emit changes.
type Printer struct {
	w      io.Writer
	out    *termenv.Output
	render Renderer

	printed map[string]string // step id -> text
}

// NewPrinter creates a printer. A nil render prints bot text as is.
// Colours follow the terminal profile of w; pass termenv.Ascii through
// profile to disable them.
func NewPrinter(w io.Writer, render Renderer, opts ...termenv.OutputOption) *Printer {
	if render == nil {
		render = PlainRenderer
	}
	return &Printer{
		w:       w,
		out:     termenv.NewOutput(w, opts...),
		render:  render,
		printed: make(map[string]string),
	}
}

// Print writes the steps not yet printed. A step whose text grew since the
// last call (a streaming llm reply) is printed again with only the new text.
func (p *Printer) Print(steps []domain.Step) {
	for _, step := range steps {
		prev, seen := p.printed[step.ID]
		if seen && prev == step.Text {
			continue
		}
		p.printed[step.ID] = step.Text

		text := step.Text
		if seen && strings.HasPrefix(text, prev) {
			fmt.Fprint(p.w, text[len(prev):])
			continue
		}
		p.printStep(step.Role, text)
	}
}

// Forget clears the printed set, used after a reset.
func (p *Printer) Forget() {
	p.printed = make(map[string]string)
}

// Notice prints a dim informational line.
func (p *Printer) Notice(format string, args ...any) {
	fmt.Fprintln(p.w, p.out.String(fmt.Sprintf(format, args...)).Faint())
}

func (p *Printer) printStep(role domain.Role, text string) {
	switch role {
	case domain.RoleUser:
		fmt.Fprintln(p.w, p.out.String("> "+text).Foreground(p.out.Color("#38bdf8")))
	default:
		rendered, err := p.render(text)
		if err != nil {
			rendered = text
		}
		fmt.Fprintln(p.w, p.out.String(strings.TrimRight(rendered, "\n")).Foreground(p.out.Color("#c084fc")))
	}
}
