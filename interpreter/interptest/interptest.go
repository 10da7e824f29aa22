// Package interptest provides a scripted interpreter for testing code that
// drives the interpreter contract, without the overhead of a real backend.
//
// Each source line is one instruction:
//
//	say <text>    append <text> to the Standard stream
//	note <text>   append <text> to the Meta stream
//	fail <text>   record a runtime error with message <text>
//	hang          block until the execution context is done
//	stall         block parsing until the parse context is done
//
// Blank lines are ignored. Any other line is a syntax error reported at its
// line number, which makes the whole program fail to parse.
package interptest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/webinterp/interpreter"
)

// Factory creates scripted sessions and records what they were asked to do.
type Factory struct {
	// Err, when set, is returned by New instead of a session.
	Err error

	created  atomic.Int64
	mu       sync.Mutex
	sessions []*Session
}

// NewFactory returns a Factory with no sessions.
func NewFactory() *Factory {
	return &Factory{}
}

// Name returns "fake".
func (f *Factory) Name() string {
	return "fake"
}

// New returns a fresh session.
func (f *Factory) New(ctx context.Context) (interpreter.Interpreter, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.created.Add(1)
	s := &Session{streams: interpreter.NewStreams()}

	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

// Created returns how many sessions New has handed out.
func (f *Factory) Created() int {
	return int(f.created.Load())
}

// Sessions returns every session created so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Session, len(f.sessions))
	copy(out, f.sessions)
	return out
}

type instruction struct {
	op  string
	arg string
}

// Session is a scripted interpreter session.
type Session struct {
	streams  *interpreter.Streams
	program  []instruction
	parseOK  bool
	parses   int
	executed int
	closed   bool
	mu       sync.Mutex
}

func (s *Session) Parse(ctx context.Context, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parses++
	s.program = nil
	s.parseOK = true

	for i, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		op, arg, _ := strings.Cut(line, " ")
		switch op {
		case "say", "note", "fail", "hang":
			s.program = append(s.program, instruction{op: op, arg: arg})
		case "stall":
			<-ctx.Done()
			s.parseOK = false
			s.streams.Error.Append(interpreter.ErrorRecord{
				Message:  "parse cancelled: " + ctxReason(ctx),
				Phase:    interpreter.PhaseParse,
				Severity: "error",
				Line:     i + 1,
			})
		default:
			s.parseOK = false
			s.streams.Error.Append(interpreter.ErrorRecord{
				Message:  "unknown instruction " + op,
				Phase:    interpreter.PhaseParse,
				Severity: "error",
				Line:     i + 1,
				Column:   1,
			})
		}
	}

	if s.parseOK {
		s.streams.Meta.Append("parse: ok")
	} else {
		s.streams.Meta.Append("parse: failed")
	}
}

func (s *Session) ParsingOK() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseOK
}

func (s *Session) Execute(ctx context.Context) {
	s.mu.Lock()
	s.executed++
	program := s.program
	s.mu.Unlock()

	for _, in := range program {
		switch in.op {
		case "say":
			s.streams.Standard.Append(in.arg)
		case "note":
			s.streams.Meta.Append(in.arg)
		case "fail":
			s.streams.Error.Append(interpreter.ErrorRecord{
				Message:  in.arg,
				Phase:    interpreter.PhaseExecute,
				Severity: "error",
			})
			return
		case "hang":
			<-ctx.Done()
			s.streams.Error.Append(interpreter.ErrorRecord{
				Message:  "execution cancelled: " + ctxReason(ctx),
				Phase:    interpreter.PhaseExecute,
				Severity: "error",
			})
			return
		}
	}
	s.streams.Meta.Append("execute: ok")
}

func (s *Session) Streams() *interpreter.Streams {
	return s.streams
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Parses returns how many times Parse was called.
func (s *Session) Parses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parses
}

// Executions returns how many times Execute was called.
func (s *Session) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func ctxReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "deadline exceeded"
	}
	return "canceled"
}
