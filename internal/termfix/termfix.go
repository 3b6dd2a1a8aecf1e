// Package termfix adjusts the terminal environment before lipgloss and
// termenv probe it. Import it first from main:
//
//	_ "github.com/wahlandcase/applypr/internal/termfix"
package termfix

import "os"

func init() {
	fix(os.Getenv, os.Setenv)
}

func fix(getenv func(string) string, setenv func(string, string) error) {
	switch {
	case getenv("TERM_PROGRAM") == "WarpTerminal":
		// Warp answers the background colour query late and stalls every prompt
		_ = setenv("TERM", "dumb")
		_ = setenv("COLORTERM", "truecolor")
	case getenv("TERM") == "" && getenv("SSH_CONNECTION") != "":
		_ = setenv("TERM", "xterm")
	}
}
