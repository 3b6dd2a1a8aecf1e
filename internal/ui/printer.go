package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wahlandcase/applypr/internal/orchestrator"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// IsTerminal reports whether f is an interactive terminal
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetupColor drops every colour when disabled or when out is not a terminal
func SetupColor(out *os.File, noColor bool) {
	if noColor || !IsTerminal(out) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// Printer writes deploy progress, one line per phase
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter returns a Printer on out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

var phaseStatus = map[orchestrator.Phase]string{
	orchestrator.PhasePending:  "pending",
	orchestrator.PhaseConflict: "error",
	orchestrator.PhaseSuccess:  "success",
	orchestrator.PhaseFailure:  "failed",
}

// Phase implements orchestrator.Notifier
func (p *Printer) Phase(pr int, phase orchestrator.Phase, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := phaseStatus[phase]
	if !ok {
		status = "loading"
	}
	icon := Icon(status)
	if !ok {
		icon = lipgloss.NewStyle().Foreground(ColorCyan).Render("→")
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(StateColor(status)).Render(fmt.Sprintf("PR #%d %s", pr, phase))
	if detail == "" {
		fmt.Fprintf(p.out, "  %s %s\n", icon, title)
		return
	}
	fmt.Fprintf(p.out, "  %s %s  %s\n", icon, title, Dim(detail))
}

// Applied implements orchestrator.Notifier
func (p *Printer) Applied(pr int, subject string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "      %s %s\n", Icon("applied"), subject)
}

// Println writes one raw line
func (p *Printer) Println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
