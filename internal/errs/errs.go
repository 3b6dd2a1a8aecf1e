package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react without parsing messages
type Kind int

const (
	// Unknown is the zero value, never produced on purpose
	Unknown Kind = iota
	// Precondition means the remote checkout is not in a state we can apply to
	Precondition
	// Config means the remote environment is misconfigured (e.g. git identity missing)
	Config
	// Conflict means a patch or diff did not apply cleanly
	Conflict
	// Connection means the remote channel could not be reached
	Connection
	// Upload means an artifact could not be written locally or remotely
	Upload
	// API means the hosting API rejected or failed a request
	API
	// Usage means an invalid combination of options was requested
	Usage
	// ResumePointNotFound means the requested starting commit is not part of the PR
	ResumePointNotFound
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	Precondition:        "precondition failed",
	Config:              "configuration error",
	Conflict:            "conflict",
	Connection:          "connection error",
	Upload:              "upload error",
	API:                 "hosting API error",
	Usage:               "invalid usage",
	ResumePointNotFound: "resume point not found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a classified failure carrying the structured context of what broke
type Error struct {
	// Kind of failure
	Kind Kind
	// Op is the operation that failed (e.g. "git am", "upload")
	Op string
	// Path is the offending local or remote path, if any
	Path string
	// Output is the raw tool output, if any
	Output string
	// Err is the underlying error, may be nil
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if out := lastLine(e.Output); out != "" {
		b.WriteString(": ")
		b.WriteString(out)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a format string
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithOutput builds a classified error carrying raw tool output
func WithOutput(kind Kind, op, output string) *Error {
	return &Error{Kind: kind, Op: op, Output: strings.TrimSpace(output)}
}

// WithPath builds a classified error naming the offending path
func WithPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or Unknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
