// Package webinterp runs programs delivered over HTTP as base64url payloads
// and returns what they printed, what went wrong, and what the interpreter
// had to say about it.
//
// # Overview
//
// A request carries a program in the code query parameter. The bridge decodes
// it, creates a fresh interpreter session, parses the source, executes it only
// if parsing succeeded, and drains three ordered streams into the response:
//
//	GET /interpret?code=cHJpbnQoImhpIik
//
//	{"Standard":["hi"],"Error":[],"Meta":["backend: starlark","parse: ok","execute: ok (5 steps)"]}
//
// Syntax and runtime errors are data: they come back in Error with HTTP 200.
// Payloads that are not URL-safe base64 or not UTF-8 are rejected with 400
// before any interpreter exists.
//
// # Library Usage
//
//	b := bridge.New(starlark.New(), bridge.WithExecutionTimeout(5*time.Second))
//	res, err := b.Run(ctx, `print("hello")`)
//	fmt.Println(res.Response.Standard) // [hello]
//
// A WASI interpreter module can stand in for Starlark:
//
//	rt, _ := wasm.Load(ctx, "interp.wasm", wasm.WithDiskCache())
//	defer rt.Close()
//	b := bridge.New(rt)
//
// See the [bridge], [interpreter], [interpreter/starlark], [interpreter/wasm]
// and [hostfunc] packages for details, and cmd/webinterp for the service.
package webinterp
