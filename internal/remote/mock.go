package remote

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Mock is a scripted Channel for tests.
//
// Responses are registered with On against a substring of the wrapped
// command line. When several patterns match, the longest wins. Each call
// consumes the next scripted result; the last one repeats. Unmatched
// commands succeed with empty output.
type Mock struct {
	// HostName is returned by Host
	HostName string
	// Err, when set, is returned by every Run as a transport failure
	Err error

	mu    sync.Mutex
	rules []*mockRule
	calls []MockCall
}

type mockRule struct {
	pattern string
	results []Result
	used    int
}

// MockCall records one Run invocation
type MockCall struct {
	Line  string
	Stdin string
}

// NewMock returns a Mock named host
func NewMock(host string) *Mock {
	return &Mock{HostName: host}
}

// On scripts the results for commands containing pattern
func (m *Mock) On(pattern string, results ...Result) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(results) == 0 {
		results = []Result{{}}
	}
	m.rules = append(m.rules, &mockRule{pattern: pattern, results: results})
	return m
}

// Fail is shorthand for a single failing result
func Fail(output string) Result {
	return Result{Output: output, ExitCode: 1}
}

// OK is shorthand for a single successful result
func OK(output string) Result {
	return Result{Output: output}
}

func (m *Mock) Run(ctx context.Context, line string, stdin io.Reader) (Result, error) {
	call := MockCall{Line: line}
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return Result{}, err
		}
		call.Stdin = string(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.Err != nil {
		return Result{}, m.Err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var best *mockRule
	for _, r := range m.rules {
		if strings.Contains(line, r.pattern) && (best == nil || len(r.pattern) > len(best.pattern)) {
			best = r
		}
	}
	if best == nil {
		return Result{}, nil
	}
	i := best.used
	if i >= len(best.results) {
		i = len(best.results) - 1
	}
	best.used++
	return best.results[i], nil
}

func (m *Mock) Host() string {
	return m.HostName
}

func (m *Mock) Close() error {
	return nil
}

// Calls returns a copy of all recorded calls
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Lines returns the recorded command lines
func (m *Mock) Lines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line
	}
	return lines
}

// Ran reports whether any recorded command contains substr
func (m *Mock) Ran(substr string) bool {
	return m.Count(substr) > 0
}

// Count returns how many recorded commands contain substr
func (m *Mock) Count(substr string) int {
	n := 0
	for _, l := range m.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// Index returns the position of the first command containing substr, or -1
func (m *Mock) Index(substr string) int {
	for i, l := range m.Lines() {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

var (
	_ Channel = (*Mock)(nil)
	_ Channel = (*Local)(nil)
	_ Channel = (*SSH)(nil)
)
