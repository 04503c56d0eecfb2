package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the hamsfam ASCII banner followed by version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct{ text, color string }{
		{"  _                     __", "#818cf8"},
		{" | |__   __ _ _ __ ___ / _| __ _ _ __ ___", "#a78bfa"},
		{" | '_ \\ / _` | '_ ` _ \\ |_ / _` | '_ ` _ \\", "#c084fc"},
		{" | | | | (_| | | | | | |  _| (_| | | | | | |", "#e879f9"},
		{" |_| |_|\\__,_|_| |_| |_|_|  \\__,_|_| |_| |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
