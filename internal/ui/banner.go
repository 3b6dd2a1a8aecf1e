package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Banner is the ASCII art header printed before a deploy
var Banner = []string{
	"    _    ____  ____  _  __   __  ____  ____  ",
	"   / \\  |  _ \\|  _ \\| | \\ \\ / / |  _ \\|  _ \\ ",
	"  / _ \\ | |_) | |_) | |  \\ V /  | |_) | |_) |",
	" / ___ \\|  __/|  __/| |___| |   |  __/|  _ < ",
	"/_/   \\_\\_|   |_|   |_____|_|   |_|   |_| \\_\\",
}

// RenderBanner returns the styled banner, with the target host underneath
func RenderBanner(host string) string {
	bannerStyle := lipgloss.NewStyle().Foreground(ColorCyan)

	var lines []string
	for _, line := range Banner {
		lines = append(lines, bannerStyle.Render(line))
	}

	if host != "" {
		lines = append(lines, "")
		hostStyle := lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)
		lines = append(lines, hostStyle.Render("→ "+host))
	}

	return strings.Join(lines, "\n")
}
