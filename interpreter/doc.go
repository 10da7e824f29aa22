// Package interpreter defines the collaborator contract used by the bridge.
//
// # Overview
//
// A [Factory] creates one [Interpreter] per request. The session moves
// through a two-phase lifecycle: Parse, then (only if parsing succeeded)
// Execute. Everything the program produces lands in three append-only
// [Streams]:
//
//   - Standard: program output lines
//   - Error: structured [ErrorRecord] values (syntax and runtime errors)
//   - Meta: diagnostic lines that are neither output nor errors
//
// Streams are drained exactly once at the end of the request:
//
//	session, err := factory.New(ctx)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	session.Parse(ctx, source)
//	if session.ParsingOK() {
//	    session.Execute(ctx)
//	}
//	out, err := session.Streams().Drain()
//
// # Backends
//
// See [github.com/caffeineduck/webinterp/interpreter/starlark] for the
// embedded backend and [github.com/caffeineduck/webinterp/interpreter/wasm]
// for hosting an interpreter compiled to WebAssembly.
package interpreter
