// Package remote runs shell commands and writes files on the deploy host.
//
// A Channel is the raw transport (SSH or the local shell). Exec layers the
// execution context on top of it: working directory, the local user to run
// as, privilege elevation and verbosity. Every remote operation in applypr
// goes through an Exec value passed in by the caller.
package remote

import (
	"context"
	"io"
	"regexp"
	"strings"
)

// Result is the captured outcome of one command
type Result struct {
	// Output is stdout and stderr combined, in arrival order
	Output string
	// ExitCode of the command, 0 on success
	ExitCode int
}

// Failed reports a non-zero exit status
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Lines returns the non-empty output lines
func (r Result) Lines() []string {
	var lines []string
	for _, l := range strings.Split(r.Output, "\n") {
		if l = strings.TrimRight(l, "\r"); strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Channel executes shell lines on a host.
//
// Run returns an error only when the transport itself fails; a command
// exiting non-zero is reported through Result.ExitCode.
type Channel interface {
	Run(ctx context.Context, line string, stdin io.Reader) (Result, error)
	// Host is the name the channel was opened against
	Host() string
	Close() error
}

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_./:@%+=,-]+$`)

// Quote returns s as a single shell word, leaving plain words untouched
func Quote(s string) string {
	if s != "" && safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteAll quotes every word and joins them with spaces
func QuoteAll(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}
