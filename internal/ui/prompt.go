package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wahlandcase/applypr/internal/apply"
	"github.com/wahlandcase/applypr/internal/deploy"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// choice is a single-question prompt answered with the arrows and enter,
// or with the first letter of an option
type choice struct {
	title     string
	body      []string
	labels    []string
	buttons   func(selection int) string
	selection int
	// chosen is -1 until answered; cancelling picks the last option
	chosen int
}

func newChoice(title string, body []string, labels []string, colors []lipgloss.Color) choice {
	buttons := func(selection int) string { return Buttons(labels, colors, selection) }
	return choice{title: title, body: body, labels: labels, buttons: buttons, chosen: -1}
}

func newConfirm(title string, body []string) choice {
	return choice{title: title, body: body, labels: []string{"YES", "NO"}, buttons: YesNoButtons, chosen: -1}
}

func (m choice) Init() tea.Cmd {
	return nil
}

func (m choice) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.chosen = len(m.labels) - 1
		return m, tea.Quit
	case tea.KeyLeft, tea.KeyShiftTab:
		m.selection = (m.selection + len(m.labels) - 1) % len(m.labels)
	case tea.KeyRight, tea.KeyTab:
		m.selection = (m.selection + 1) % len(m.labels)
	case tea.KeyEnter:
		m.chosen = m.selection
		return m, tea.Quit
	case tea.KeyRunes:
		typed := strings.ToLower(string(key.Runes))
		for i, l := range m.labels {
			if strings.HasPrefix(strings.ToLower(l), typed) {
				m.chosen = i
				m.selection = i
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m choice) View() string {
	if m.chosen >= 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(SectionHeader(m.title, ColorYellow))
	b.WriteString("\n\n")
	if len(m.body) > 0 {
		b.WriteString(lipgloss.NewStyle().MarginLeft(2).Render(Box(strings.Join(m.body, "\n"), ColorYellow)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.buttons(m.selection))
	b.WriteString("\n\n  ")
	b.WriteString(KeyBinding("←/→", "select", ColorCyan))
	b.WriteString("  ")
	b.WriteString(KeyBinding("enter", "confirm", ColorCyan))
	b.WriteString("\n")
	return b.String()
}

// Prompter asks the operator on a terminal
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter returns a Prompter reading keys from in
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

func (p *Prompter) ask(ctx context.Context, m choice) (int, error) {
	prog := tea.NewProgram(m, tea.WithInput(p.in), tea.WithOutput(p.out), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return 0, fmt.Errorf("prompt: %w", err)
	}
	picked := final.(choice).chosen
	if picked < 0 {
		picked = len(m.labels) - 1
	}
	return picked, nil
}

// ConfirmResume implements orchestrator.Operator
func (p *Prompter) ConfirmResume(ctx context.Context, pr int, rp deploy.ResumePoint) (bool, error) {
	body := []string{
		fmt.Sprintf("PR #%d was last deployed at %s on %s", pr, Bold(rp.Deployed.ShortSHA()), rp.Deployment.Environment),
		Dim(rp.Deployed.Subject()),
	}
	if rp.Next != nil {
		body = append(body, fmt.Sprintf("Continue from %s %s?", Bold(rp.Next.ShortSHA()), Dim(rp.Next.Subject())))
	}
	n, err := p.ask(ctx, newConfirm("REDEPLOY", body))
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

var decisions = []apply.Decision{apply.Continue, apply.Wiggle, apply.Abort}

// Decide implements orchestrator.Operator
func (p *Prompter) Decide(ctx context.Context, pr int, c *apply.Conflict) (apply.Decision, error) {
	n, err := p.ask(ctx, newChoice("CONFLICT", ConflictLines(pr, c),
		[]string{"CONTINUE", "WIGGLE", "ABORT"},
		[]lipgloss.Color{ColorGreen, ColorYellow, ColorRed}))
	if err != nil {
		return apply.Abort, err
	}
	return decisions[n], nil
}

// ConflictLines describes a conflict for the operator
func ConflictLines(pr int, c *apply.Conflict) []string {
	lines := []string{fmt.Sprintf("PR #%d did not apply cleanly", pr)}
	if c == nil {
		return lines
	}
	if c.Patch != nil {
		lines = append(lines, "Failed patch: "+Bold(c.Patch.Name))
	}
	for _, r := range c.Rejects {
		lines = append(lines, "Rejected hunks: "+r)
	}
	if out := strings.TrimSpace(c.Output); out != "" {
		for _, l := range lastLines(out, 6) {
			lines = append(lines, Dim(l))
		}
	}
	lines = append(lines, "",
		"Fix the checkout in another shell, then continue (staged changes are",
		"committed, nothing staged skips the patch), wiggle the rejects, or abort.")
	return lines
}

func lastLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
