// Package interpreter defines the contract between the bridge and a language
// interpreter backend.
package interpreter

import (
	"context"
	"encoding/json"
)

// Factory creates isolated interpreter sessions.
// Implement this interface to plug in a new interpreter backend.
type Factory interface {
	// Name returns a unique identifier for this backend (e.g., "starlark", "wasm").
	Name() string

	// New returns a fresh, unparsed session. Sessions are never shared or
	// reused. An error means the backend itself is unavailable; problems with
	// the submitted program are reported through the session's streams.
	New(ctx context.Context) (Interpreter, error)
}

// Interpreter is a single-use session owning parse and execution state.
type Interpreter interface {
	// Parse feeds source text to the session. Syntax errors are recorded in
	// the Error stream and reflected by ParsingOK.
	Parse(ctx context.Context, source string)

	// ParsingOK reports whether the most recent Parse succeeded.
	ParsingOK() bool

	// Execute runs the parsed program to completion. It is only meaningful
	// after a successful Parse and is safe to skip entirely. Runtime errors,
	// including cancellation through ctx, are recorded in the Error stream.
	Execute(ctx context.Context)

	// Streams returns the session's output channels.
	Streams() *Streams

	// Close releases the session's resources.
	Close() error
}

// Phase identifies when an error record was produced.
type Phase string

const (
	PhaseParse   Phase = "parse"
	PhaseExecute Phase = "execute"
)

// ErrorRecord is a structured error produced by an interpreter. Only Message
// is guaranteed; the remaining fields are backend-defined and passed through
// to clients unchanged.
type ErrorRecord struct {
	Message  string `json:"message"`
	Phase    Phase  `json:"phase,omitempty"`
	Severity string `json:"severity,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Trace    string `json:"trace,omitempty"`

	// Extra holds fields the backend sent beyond the ones above, and known
	// fields whose value had an unexpected type. Entries are encoded as-is
	// and take the place of a known field with the same name.
	Extra map[string]json.RawMessage `json:"-"`
}
