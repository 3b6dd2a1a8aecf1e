package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SectionHeader creates a styled section header with a title and color
// Example: "─── TITLE ───────────"
func SectionHeader(title string, color lipgloss.Color) string {
	dashes := strings.Repeat("─", max(25-len(title), 0))
	headerStyle := lipgloss.NewStyle().Foreground(color)
	titleStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	return fmt.Sprintf("%s%s%s",
		headerStyle.Render("  ─── "),
		titleStyle.Render(title),
		headerStyle.Render(" "+dashes),
	)
}

// Buttons renders one boxed button per label, highlighting the selected one
// in its colour and the others in gray
func Buttons(labels []string, colors []lipgloss.Color, selection int) string {
	var tops, mids, bots []string
	for i, label := range labels {
		border := ColorDarkGray
		text := ColorWhite
		icon := " "
		if i == selection {
			border, text, icon = colors[i], colors[i], ">"
		}
		boxStyle := lipgloss.NewStyle().Foreground(border)
		textStyle := lipgloss.NewStyle().Foreground(text).Bold(true)

		inner := fmt.Sprintf(" %s  %s ", icon, label)
		width := lipgloss.Width(inner)
		tops = append(tops, boxStyle.Render("┌"+strings.Repeat("─", width)+"┐"))
		mids = append(mids, boxStyle.Render("│")+textStyle.Render(inner)+boxStyle.Render("│"))
		bots = append(bots, boxStyle.Render("└"+strings.Repeat("─", width)+"┘"))
	}
	return "  " + strings.Join(tops, " ") + "\n" +
		"  " + strings.Join(mids, " ") + "\n" +
		"  " + strings.Join(bots, " ")
}

// YesNoButtons renders the YES/NO pair; selection 0 is YES
func YesNoButtons(selection int) string {
	return Buttons([]string{"YES", "NO"}, []lipgloss.Color{ColorGreen, ColorRed}, selection)
}

// ProgressBar creates a progress bar
func ProgressBar(current, total int, width int) string {
	if total == 0 {
		return ""
	}

	progress := float64(current) / float64(total)
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	barStyle := lipgloss.NewStyle().Foreground(ColorGreen)
	percentStyle := lipgloss.NewStyle().Foreground(ColorWhite)

	return fmt.Sprintf("%s %s",
		barStyle.Render(fmt.Sprintf("[%s]", bar)),
		percentStyle.Render(fmt.Sprintf("%d%%", percentage)),
	)
}

// KeyBinding renders a key binding hint
func KeyBinding(key, description string, color lipgloss.Color) string {
	keyStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(ColorWhite)

	return fmt.Sprintf("%s %s",
		keyStyle.Render(key),
		descStyle.Render(description),
	)
}

// StatusIcon returns the appropriate status icon and color
func StatusIcon(status string) (string, lipgloss.Color) {
	switch status {
	case "success", "applied":
		return "✓", ColorGreen
	case "resolved":
		return "↻", ColorBlue
	case "skipped", "pending":
		return "⊘", ColorYellow
	case "failed", "error", "failure":
		return "✗", ColorRed
	case "loading":
		return "⏳", ColorYellow
	default:
		return "·", ColorWhite
	}
}

// Icon renders the status icon in its colour
func Icon(status string) string {
	icon, color := StatusIcon(status)
	return lipgloss.NewStyle().Foreground(color).Render(icon)
}

// Box frames content in a rounded border
func Box(content string, borderColor lipgloss.Color) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1)

	return style.Render(content)
}

// Dim renders secondary text
func Dim(text string) string {
	return lipgloss.NewStyle().Foreground(ColorDarkGray).Render(text)
}

// Bold renders emphasised text
func Bold(text string) string {
	return lipgloss.NewStyle().Bold(true).Render(text)
}
