package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/caffeineduck/webinterp/hostfunc"
	"github.com/caffeineduck/webinterp/interpreter"
)

var errExited = errors.New("interpreter exited")

// Session is one running instance of the interpreter module. The instance
// is started by New and torn down by Close; it is never reused.
type Session struct {
	streams *interpreter.Streams
	stdout  *interpreter.LineWriter
	proto   *protocol
	stdin   *syncWriter
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter

	cancel  context.CancelFunc
	exited  chan struct{}
	exitErr error

	parseOK   bool
	closeOnce sync.Once
}

func (r *Runtime) startSession(ctx context.Context) *Session {
	// The instance outlives the call to New but keeps its values for tracing.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	streams := interpreter.NewStreams()
	stdinR, stdinW := io.Pipe()
	s := &Session{
		streams: streams,
		stdout:  interpreter.NewLineWriter(&streams.Standard),
		stdin:   &syncWriter{w: stdinW},
		stdinR:  stdinR,
		stdinW:  stdinW,
		cancel:  cancel,
		exited:  make(chan struct{}),
	}
	s.proto = newProtocol(runCtx, hostfunc.NewRequestRegistry(r.cfg.host), streams, s.stdin)
	streams.Meta.Append("backend: " + Name)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(s.stdout).
		WithStderr(s.proto).
		WithStdin(stdinR).
		WithArgs(r.cfg.args...).
		WithName("")

	go s.run(runCtx, r.runtime, r.compiled, moduleConfig)
	return s
}

func (s *Session) run(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule, cfg wazero.ModuleConfig) {
	defer close(s.exited)

	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if mod != nil {
		mod.Close(context.Background())
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}
	s.exitErr = err
	s.stdinR.CloseWithError(errExited)
}

func (s *Session) Parse(ctx context.Context, source string) {
	s.parseOK = false
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	s.proto.setPhase(interpreter.PhaseParse)
	if err := s.stdin.writeLine(command{Type: "parse", Code: source}); err != nil {
		s.abort(ctx, interpreter.PhaseParse)
		s.flush()
		return
	}

	select {
	case ok := <-s.proto.parsed:
		s.parseOK = ok
	case <-s.exited:
		select {
		case ok := <-s.proto.parsed:
			s.parseOK = ok
		default:
			s.abort(ctx, interpreter.PhaseParse)
		}
	}

	if s.parseOK {
		s.streams.Meta.Append("parse: ok")
		return
	}
	s.streams.Meta.Append("parse: failed")
	s.flush()
}

func (s *Session) ParsingOK() bool {
	return s.parseOK
}

func (s *Session) Execute(ctx context.Context) {
	if !s.parseOK {
		return
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.flush()

	s.proto.setPhase(interpreter.PhaseExecute)
	if err := s.stdin.writeLine(command{Type: "exec"}); err != nil {
		s.abort(ctx, interpreter.PhaseExecute)
		return
	}

	select {
	case <-s.proto.done:
		s.streams.Meta.Append("execute: ok")
	case <-s.exited:
		select {
		case <-s.proto.done:
			s.streams.Meta.Append("execute: ok")
			return
		default:
		}
		if ctx.Err() == nil && s.exitErr == nil {
			s.streams.Meta.Append("execute: ok (exited)")
			return
		}
		s.abort(ctx, interpreter.PhaseExecute)
	}
}

// abort records why the instance stopped before answering. It waits for the
// instance to exit, which has happened or is underway whenever it is called.
func (s *Session) abort(ctx context.Context, phase interpreter.Phase) {
	<-s.exited

	noun := "parse"
	if phase == interpreter.PhaseExecute {
		noun = "execution"
	}

	var msg string
	switch {
	case ctx.Err() != nil:
		msg = fmt.Sprintf("%s cancelled: %v", noun, ctx.Err())
	case s.exitErr != nil:
		msg = fmt.Sprintf("interpreter exited during %s: %v", noun, s.exitErr)
	default:
		msg = fmt.Sprintf("interpreter exited before finishing %s", noun)
	}
	s.streams.Error.Append(interpreter.ErrorRecord{
		Message:  msg,
		Phase:    phase,
		Severity: "error",
	})
}

func (s *Session) flush() {
	s.stdout.Flush()
	s.proto.flush()
}

func (s *Session) Streams() *interpreter.Streams {
	return s.streams
}

// Close ends the instance and waits for it to exit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.stdinW.Close()
		s.cancel()
		<-s.exited
		s.proto.wait()
	})
	return nil
}
