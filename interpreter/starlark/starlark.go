package starlark

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/caffeineduck/webinterp/hostfunc"
	"github.com/caffeineduck/webinterp/interpreter"
)

// Name identifies this backend.
const Name = "starlark"

const (
	filename   = "main.star"
	contextKey = "webinterp.context"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Factory creates Starlark sessions. It is safe for concurrent use.
type Factory struct {
	maxSteps atomic.Uint64
	host     hostfunc.RequestConfig
}

// Option configures a Factory.
type Option func(*Factory)

// WithMaxSteps limits the number of Starlark execution steps. Zero means
// unlimited.
func WithMaxSteps(n uint64) Option {
	return func(f *Factory) {
		f.maxSteps.Store(n)
	}
}

// WithHostFunctions sets the capabilities exposed through the host module.
func WithHostFunctions(cfg hostfunc.RequestConfig) Option {
	return func(f *Factory) {
		f.host = cfg
	}
}

// New returns a Factory. By default sessions get unlimited steps and the
// default per-request host functions.
func New(opts ...Option) *Factory {
	f := &Factory{host: hostfunc.DefaultRequestConfig()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Name() string {
	return Name
}

// MaxSteps returns the current step limit.
func (f *Factory) MaxSteps() uint64 {
	return f.maxSteps.Load()
}

// SetMaxSteps changes the step limit for sessions created afterwards.
func (f *Factory) SetMaxSteps(n uint64) {
	f.maxSteps.Store(n)
}

func (f *Factory) New(ctx context.Context) (interpreter.Interpreter, error) {
	s := &Session{
		streams:  interpreter.NewStreams(),
		maxSteps: f.maxSteps.Load(),
	}
	s.predeclared = starlark.StringDict{
		"json": json.Module,
		"math": math.Module,
		"time": time.Module,
		"host": hostModule(hostfunc.NewRequestRegistry(f.host)),
	}
	s.streams.Meta.Append("backend: " + Name)
	return s, nil
}

// Session is one Starlark program. It must not be reused.
type Session struct {
	streams     *interpreter.Streams
	predeclared starlark.StringDict
	maxSteps    uint64
	prog        *starlark.Program
}

func (s *Session) Parse(ctx context.Context, source string) {
	s.prog = nil

	_, prog, err := starlark.SourceProgramOptions(fileOptions, filename, source, s.predeclared.Has)
	if err != nil {
		n := s.recordParseError(err)
		s.streams.Meta.Append(fmt.Sprintf("parse: failed (%d errors)", n))
		return
	}
	s.prog = prog
	s.streams.Meta.Append("parse: ok")
}

func (s *Session) recordParseError(err error) int {
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		s.streams.Error.Append(positioned(syntaxErr.Msg, syntaxErr.Pos, interpreter.PhaseParse))
		return 1
	}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) {
		for _, e := range resolveErrs {
			s.streams.Error.Append(positioned(e.Msg, e.Pos, interpreter.PhaseParse))
		}
		return len(resolveErrs)
	}

	s.streams.Error.Append(interpreter.ErrorRecord{
		Message:  err.Error(),
		Phase:    interpreter.PhaseParse,
		Severity: "error",
	})
	return 1
}

func (s *Session) ParsingOK() bool {
	return s.prog != nil
}

func (s *Session) Execute(ctx context.Context) {
	if s.prog == nil {
		return
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(_ *starlark.Thread, msg string) {
			interpreter.AppendLines(&s.streams.Standard, msg)
		},
	}
	thread.SetLocal(contextKey, ctx)
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}

	if ctx.Err() != nil {
		s.streams.Error.Append(cancelled(ctx))
		return
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	_, err := s.prog.Init(thread, s.predeclared)
	if err != nil {
		s.streams.Error.Append(runtimeError(err))
		s.streams.Meta.Append(fmt.Sprintf("execute: failed after %d steps", thread.ExecutionSteps()))
		return
	}
	s.streams.Meta.Append(fmt.Sprintf("execute: ok (%d steps)", thread.ExecutionSteps()))
}

func (s *Session) Streams() *interpreter.Streams {
	return s.streams
}

func (s *Session) Close() error {
	s.prog = nil
	s.predeclared = nil
	return nil
}

func positioned(msg string, pos syntax.Position, phase interpreter.Phase) interpreter.ErrorRecord {
	return interpreter.ErrorRecord{
		Message:  msg,
		Phase:    phase,
		Severity: "error",
		Line:     int(pos.Line),
		Column:   int(pos.Col),
	}
}

func runtimeError(err error) interpreter.ErrorRecord {
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		return interpreter.ErrorRecord{
			Message:  err.Error(),
			Phase:    interpreter.PhaseExecute,
			Severity: "error",
		}
	}

	rec := interpreter.ErrorRecord{
		Message:  evalErr.Msg,
		Phase:    interpreter.PhaseExecute,
		Severity: "error",
		Trace:    evalErr.Backtrace(),
	}
	// Innermost frame with a source position; builtins have none.
	for i := 0; i < len(evalErr.CallStack); i++ {
		if pos := evalErr.CallStack.At(i).Pos; pos.Line > 0 {
			rec.Line = int(pos.Line)
			rec.Column = int(pos.Col)
			break
		}
	}
	return rec
}

func cancelled(ctx context.Context) interpreter.ErrorRecord {
	return interpreter.ErrorRecord{
		Message:  "Starlark computation cancelled: " + ctx.Err().Error(),
		Phase:    interpreter.PhaseExecute,
		Severity: "error",
	}
}

// hostModule exposes every function in registry as host.<name>, called with
// keyword arguments.
func hostModule(registry *hostfunc.Registry) *starlarkstruct.Module {
	members := make(starlark.StringDict)
	for _, name := range registry.List() {
		members[name] = starlark.NewBuiltin("host."+name, hostBuiltin(registry, name))
	}
	return &starlarkstruct.Module{Name: "host", Members: members}
}

func hostBuiltin(registry *hostfunc.Registry, name string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: only keyword arguments are accepted", b.Name())
		}

		goArgs := make(map[string]any, len(kwargs))
		for _, kv := range kwargs {
			key := string(kv[0].(starlark.String))
			val, err := toGo(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: argument %s: %w", b.Name(), key, err)
			}
			goArgs[key] = val
		}

		ctx, _ := thread.Local(contextKey).(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}

		result, err := registry.Call(ctx, name, goArgs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return fromGo(result)
	}
}
