package ui

import "github.com/charmbracelet/lipgloss"

// Note: Warp terminal fix is in internal/termfix package, imported first in cmd/applypr

var (
	ColorCyan       = lipgloss.Color("#00FFFF")
	ColorGreen      = lipgloss.Color("#00FF00")
	ColorYellow     = lipgloss.Color("#FFFF00")
	ColorRed        = lipgloss.Color("#FF0000")
	ColorMagenta    = lipgloss.Color("#FF00FF")
	ColorBlue       = lipgloss.Color("#5555FF")
	ColorLightGreen = lipgloss.Color("#90EE90")
	ColorWhite      = lipgloss.Color("#FFFFFF")
	ColorDarkGray   = lipgloss.Color("8")
)

// StateColor maps a deployment state (or a status name) to its colour
func StateColor(state string) lipgloss.Color {
	switch state {
	case "success", "applied", "deployed":
		return ColorGreen
	case "pending", "in_progress", "queued", "skipped":
		return ColorYellow
	case "error", "failure", "failed":
		return ColorRed
	case "inactive":
		return ColorDarkGray
	default:
		return ColorWhite
	}
}

// Colored renders text in the colour of state
func Colored(state, text string) string {
	return lipgloss.NewStyle().Foreground(StateColor(state)).Render(text)
}
