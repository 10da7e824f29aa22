package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/caffeineduck/webinterp/interpreter"
)

const tracerName = "github.com/caffeineduck/webinterp/bridge"

// Result holds the response together with lifecycle metadata that is not
// part of the wire contract.
type Result struct {
	Response Response
	State    State
	Duration time.Duration
}

// Bridge drives an interpreter backend through its parse/execute lifecycle.
// It holds no per-request state and is safe for concurrent use.
type Bridge struct {
	factory interpreter.Factory
	tracer  trace.Tracer
	timeout atomic.Int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithExecutionTimeout bounds program execution. Zero disables the deadline.
func WithExecutionTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout.Store(int64(d))
	}
}

// WithTracerProvider sets the provider used for bridge spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bridge) {
		b.tracer = tp.Tracer(tracerName)
	}
}

// New returns a Bridge creating sessions from factory.
func New(factory interpreter.Factory, opts ...Option) *Bridge {
	b := &Bridge{
		factory: factory,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Backend returns the name of the interpreter backend.
func (b *Bridge) Backend() string {
	return b.factory.Name()
}

// ExecutionTimeout returns the current execution deadline.
func (b *Bridge) ExecutionTimeout() time.Duration {
	return time.Duration(b.timeout.Load())
}

// SetExecutionTimeout changes the execution deadline for subsequent requests.
func (b *Bridge) SetExecutionTimeout(d time.Duration) {
	b.timeout.Store(int64(d))
}

// Interpret decodes payload and runs the resulting source. Decoding failures
// are returned before any interpreter session is created.
func (b *Bridge) Interpret(ctx context.Context, payload string) (Result, error) {
	_, span := b.tracer.Start(ctx, "bridge.decode")
	source, err := Decode(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Reason(err))
		span.End()
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("source.bytes", len(source)))
	span.End()

	return b.Run(ctx, source)
}

// Run interprets already decoded source text.
func (b *Bridge) Run(ctx context.Context, source string) (Result, error) {
	start := time.Now()
	backend := b.factory.Name()

	session, err := b.factory.New(ctx)
	if err != nil {
		return Result{}, &UnavailableError{Backend: backend, Err: err}
	}
	defer session.Close()

	var gate Gate

	if err := gate.RecordParse(b.parse(ctx, session, source, backend)); err != nil {
		return Result{}, err
	}

	if _, err := gate.Execute(func() { b.execute(ctx, session, backend) }); err != nil {
		return Result{}, err
	}

	out, err := session.Streams().Drain()
	if err != nil {
		return Result{}, fmt.Errorf("collect outputs: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("output.standard", len(out.Standard)),
		attribute.Int("output.error", len(out.Error)),
		attribute.Int("output.meta", len(out.Meta)),
	)

	return Result{
		Response: NewResponse(out),
		State:    gate.State(),
		Duration: time.Since(start),
	}, nil
}

// parse runs Parse under its own deadline of the execution timeout, so a
// backend that never answers cannot hold the request open.
func (b *Bridge) parse(ctx context.Context, session interpreter.Interpreter, source, backend string) bool {
	if timeout := b.ExecutionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := b.tracer.Start(ctx, "bridge.parse",
		trace.WithAttributes(attribute.String("interpreter.backend", backend)))
	defer span.End()

	session.Parse(ctx, source)
	ok := session.ParsingOK()
	span.SetAttributes(attribute.Bool("parse.ok", ok))
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, ctx.Err().Error())
	}
	return ok
}

func (b *Bridge) execute(ctx context.Context, session interpreter.Interpreter, backend string) {
	if timeout := b.ExecutionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := b.tracer.Start(ctx, "bridge.execute",
		trace.WithAttributes(attribute.String("interpreter.backend", backend)))
	defer span.End()

	session.Execute(ctx)

	if ctx.Err() != nil {
		span.SetStatus(codes.Error, ctx.Err().Error())
	}
}
