package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// report prints human-readable results. Styling is only applied when the
// destination is a terminal.
type report struct {
	w      io.Writer
	styled bool
}

func newReport(w io.Writer) *report {
	f, ok := w.(*os.File)
	return &report{w: w, styled: ok && term.IsTerminal(int(f.Fd()))}
}

func (r *report) render(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// failure prints an error that stopped stage.
func (r *report) failure(stage string, err error) {
	fmt.Fprintf(r.w, "%s %s\n", r.render(errorStyle, "error:"), stage)
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(r.w, "  %s\n", line)
	}
}

type summary struct {
	artifact string
	session  string
	entry    string
	state    string
	windows  int
	elapsed  time.Duration
	err      error
}

func (r *report) summary(s summary) {
	fmt.Fprintln(r.w, r.render(titleStyle, "surface-host"))
	row := func(label, value string) {
		fmt.Fprintf(r.w, "%s %s\n", r.render(labelStyle, fmt.Sprintf("%-10s", label)), value)
	}
	row("artifact", s.artifact)
	row("session", s.session)
	row("entry", s.entry)
	row("windows", fmt.Sprint(s.windows))
	row("elapsed", s.elapsed.Round(time.Millisecond).String())
	if s.err != nil {
		row("result", r.render(errorStyle, s.state+": "+s.err.Error()))
		return
	}
	row("result", r.render(okStyle, s.state))
}
